package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/crewdesk/backend/internal/channels"
	"github.com/crewdesk/backend/internal/models"
	"github.com/crewdesk/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DeliveryRouter persists notifications and pushes them through whichever
// channel targets the record carries. Channel transport failures never reach
// the caller; only store failures do.
type DeliveryRouter struct {
	store  repositories.NotificationRepository
	mobile channels.Channel // nil when mobile push is not configured
	web    channels.Channel // nil when web push is not configured
	log    zerolog.Logger
	now    func() time.Time
}

// NewDeliveryRouter creates a new DeliveryRouter. Either channel may be nil.
func NewDeliveryRouter(store repositories.NotificationRepository, mobile, web channels.Channel, log zerolog.Logger) *DeliveryRouter {
	return &DeliveryRouter{
		store:  store,
		mobile: mobile,
		web:    web,
		log:    log.With().Str("component", "delivery").Logger(),
		now:    time.Now,
	}
}

// CreateAndSend persists the notification first (status pending) so it is
// never lost, then attempts immediate delivery unless the payload is
// scheduled for the future. Returns the persisted record.
func (d *DeliveryRouter) CreateAndSend(ctx context.Context, notification *models.Notification) (*models.Notification, error) {
	if err := validatePayload(notification); err != nil {
		return nil, err
	}
	if notification.RequestID == "" {
		notification.RequestID = uuid.NewString()
	}
	if notification.Priority == "" {
		notification.Priority = models.PriorityMedium
	}
	notification.Status = models.StatusPending

	if err := d.store.Create(notification); err != nil {
		return nil, fmt.Errorf("persisting notification: %w", err)
	}

	now := d.now()
	if notification.ScheduledFor != nil && notification.ScheduledFor.After(now) {
		d.log.Debug().
			Uint("id", notification.ID).
			Time("scheduled_for", *notification.ScheduledFor).
			Msg("notification deferred")
		return notification, nil
	}

	d.Attempt(ctx, notification)
	if err := d.store.Save(notification); err != nil {
		return nil, fmt.Errorf("saving delivery result: %w", err)
	}
	return notification, nil
}

// Attempt pushes the notification through every channel target present on
// the record, concurrently. Success on any channel marks it delivered.
// Transport errors are logged and recorded, never returned. The record is
// mutated in place; the caller persists it.
func (d *DeliveryRouter) Attempt(ctx context.Context, n *models.Notification) {
	type attempt struct {
		channel channels.Channel
		target  string
	}
	var attempts []attempt
	if n.PushToken != "" && d.mobile != nil {
		attempts = append(attempts, attempt{d.mobile, n.PushToken})
	}
	if n.WebPushSubscription != "" && d.web != nil {
		attempts = append(attempts, attempt{d.web, n.WebPushSubscription})
	}
	if len(attempts) == 0 {
		return
	}

	msg := channels.Message{
		Title: n.Title,
		Body:  n.Message,
		Data:  payloadData(n),
	}

	n.DeliveryAttempts++
	if n.ChannelResponses == nil {
		n.ChannelResponses = models.JSONMap{}
	}

	var (
		mu        sync.Mutex
		delivered bool
		wg        sync.WaitGroup
	)
	for _, a := range attempts {
		wg.Add(1)
		go func(a attempt) {
			defer wg.Done()
			ack, err := a.channel.Send(ctx, a.target, msg)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				n.ChannelResponses[a.channel.Name()] = map[string]interface{}{"error": err.Error()}
				d.log.Warn().
					Uint("id", n.ID).
					Str("channel", a.channel.Name()).
					Err(err).
					Msg("channel delivery failed")
				return
			}
			n.ChannelResponses[a.channel.Name()] = map[string]interface{}{"ack": ack}
			delivered = true
		}(a)
	}
	wg.Wait()

	if delivered && n.Status != models.StatusDelivered {
		if err := n.MarkDelivered(d.now()); err != nil {
			d.log.Error().Uint("id", n.ID).Err(err).Msg("unexpected lifecycle state after delivery")
		}
	}
}

func validatePayload(n *models.Notification) error {
	switch {
	case n.RecipientID == "":
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	case strings.TrimSpace(n.Title) == "":
		return fmt.Errorf("%w: title is required", ErrValidation)
	case strings.TrimSpace(n.Message) == "":
		return fmt.Errorf("%w: message is required", ErrValidation)
	case n.Type == "":
		return fmt.Errorf("%w: type is required", ErrValidation)
	case !n.Priority.Valid() && n.Priority != "":
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, n.Priority)
	}
	return nil
}

// payloadData flattens the free-form Data map into the string-to-string
// shape push transports expect.
func payloadData(n *models.Notification) map[string]string {
	data := map[string]string{"type": n.Type}
	if n.RelatedEntityType != "" {
		data["related_entity_type"] = n.RelatedEntityType
		data["related_entity_id"] = n.RelatedEntityID
	}
	for k, v := range n.Data {
		data[k] = fmt.Sprintf("%v", v)
	}
	return data
}
