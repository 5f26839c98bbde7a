package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/crewdesk/backend/internal/models"
	"github.com/crewdesk/backend/internal/repositories"
	"github.com/rs/zerolog"
)

// IdentityResolver validates that an opaque recipient id maps to a real
// identity. Supplied by the surrounding application; the engine itself only
// needs the id to be stable.
type IdentityResolver interface {
	Resolve(ctx context.Context, recipientID string) error
}

// SendInput is what a business caller hands to SendIfAllowed.
type SendInput struct {
	Title             string
	Message           string
	Type              string
	Priority          models.Priority
	SenderID          string
	RelatedEntityType string
	RelatedEntityID   string
	DedupKey          string
	Data              models.JSONMap
	ExpiresAt         *time.Time
}

// Engine is the single entry point business callers use to turn an event
// into a notification. It gates on recipient preferences, defers non-urgent
// sends during quiet hours, suppresses same-day duplicates, and hands the
// surviving payload to the delivery router.
type Engine struct {
	prefs    repositories.PreferenceRepository
	registry *Registry
	guard    *DedupGuard
	router   *DeliveryRouter
	resolver IdentityResolver // optional
	log      zerolog.Logger
	now      func() time.Time
}

// NewEngine creates a new Engine. resolver may be nil when recipient ids are
// already trusted by the caller.
func NewEngine(prefs repositories.PreferenceRepository, registry *Registry, guard *DedupGuard, router *DeliveryRouter, resolver IdentityResolver, log zerolog.Logger) *Engine {
	return &Engine{
		prefs:    prefs,
		registry: registry,
		guard:    guard,
		router:   router,
		resolver: resolver,
		log:      log.With().Str("component", "engine").Logger(),
		now:      time.Now,
	}
}

// Registry exposes the type table so callers can register their own types at
// startup.
func (e *Engine) Registry() *Registry { return e.registry }

// GetOrCreatePreferences returns the recipient's preferences, creating the
// engine defaults on first access.
func (e *Engine) GetOrCreatePreferences(ctx context.Context, recipientID string) (*models.NotificationPreferences, error) {
	return e.prefs.GetOrCreate(ctx, recipientID, e.registry.Keys())
}

// SendIfAllowed applies the full preference pipeline and returns the
// persisted record, or (nil, nil) when the send was suppressed. A suppressed
// send is not an error and leaves no trace in the store.
func (e *Engine) SendIfAllowed(ctx context.Context, recipientID string, in SendInput) (*models.Notification, error) {
	if _, ok := e.registry.Lookup(in.Type); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, in.Type)
	}
	if e.resolver != nil {
		if err := e.resolver.Resolve(ctx, recipientID); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrRecipientNotFound, recipientID)
		}
	}

	prefs, err := e.GetOrCreatePreferences(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("loading preferences: %w", err)
	}

	if !prefs.TypeEnabled(in.Type) {
		e.log.Debug().
			Str("recipient", recipientID).
			Str("type", in.Type).
			Msg("notification suppressed by preferences")
		return nil, nil
	}

	notification := &models.Notification{
		RecipientID:       recipientID,
		SenderID:          in.SenderID,
		Title:             in.Title,
		Message:           in.Message,
		Type:              in.Type,
		Priority:          in.Priority,
		RelatedEntityType: in.RelatedEntityType,
		RelatedEntityID:   in.RelatedEntityID,
		DedupKey:          in.DedupKey,
		Data:              in.Data,
		ExpiresAt:         in.ExpiresAt,
	}

	// Quiet hours defer everything except urgent sends.
	now := e.now()
	if in.Priority != models.PriorityUrgent && prefs.QuietHours.Contains(now) {
		next, err := prefs.QuietHours.NextEnd(now)
		if err != nil {
			return nil, fmt.Errorf("resolving quiet hours end: %w", err)
		}
		notification.ScheduledFor = &next
		e.log.Debug().
			Str("recipient", recipientID).
			Str("type", in.Type).
			Time("scheduled_for", next).
			Msg("notification deferred to quiet hours end")
	}

	attachChannelTargets(notification, prefs)

	allowed, err := e.guard.Allow(recipientID, in.Type, in.DedupKey)
	if err != nil {
		return nil, err
	}
	if !allowed {
		e.log.Debug().
			Str("recipient", recipientID).
			Str("type", in.Type).
			Str("dedup_key", in.DedupKey).
			Msg("notification suppressed by daily cap")
		return nil, nil
	}

	return e.router.CreateAndSend(ctx, notification)
}

// SendOnThresholdCrossing is SendIfAllowed guarded by the edge trigger:
// the send only happens when value crosses from above threshold to
// at-or-below it since the last check for the same recipient/type/key.
func (e *Engine) SendOnThresholdCrossing(ctx context.Context, recipientID string, in SendInput, value, threshold float64) (*models.Notification, error) {
	if in.DedupKey == "" {
		return nil, fmt.Errorf("%w: threshold alerts require a dedup key", ErrValidation)
	}
	crossed, err := e.guard.CheckThreshold(recipientID, in.Type, in.DedupKey, value, threshold)
	if err != nil {
		return nil, err
	}
	if !crossed {
		return nil, nil
	}
	return e.SendIfAllowed(ctx, recipientID, in)
}

// attachChannelTargets copies the delivery addresses the recipient has
// registered onto the record. Targets registered after persistence do not
// retrofit older records.
func attachChannelTargets(n *models.Notification, prefs *models.NotificationPreferences) {
	n.PushToken = prefs.PushToken
	if prefs.WebPushSubscription != nil {
		if raw, err := json.Marshal(prefs.WebPushSubscription); err == nil {
			n.WebPushSubscription = string(raw)
		}
	}
}
