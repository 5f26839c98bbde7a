package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/crewdesk/backend/internal/models"
	"github.com/crewdesk/backend/internal/repositories"
	"github.com/rs/zerolog"
)

// Dispatcher re-attempts delivery for deferred and still-pending
// notifications. An external timer invokes its entry points on a fixed
// cadence; the dispatcher itself knows nothing about scheduling.
type Dispatcher struct {
	store       repositories.NotificationRepository
	prefs       repositories.PreferenceRepository
	router      *DeliveryRouter
	engine      *Engine
	batchSize   int
	maxAttempts int
	retention   time.Duration
	log         zerolog.Logger
	now         func() time.Time

	lastSummary time.Time
}

// NewDispatcher creates a new Dispatcher. batchSize bounds the records
// processed per sweep; maxAttempts is the cap after which a notification
// that never got a channel acknowledgment moves to the terminal failed
// state. Records without channel targets do not consume attempts.
// retention is how long expired records are kept before PurgeExpired
// removes them.
func NewDispatcher(store repositories.NotificationRepository, prefs repositories.PreferenceRepository, router *DeliveryRouter, engine *Engine, batchSize, maxAttempts int, retention time.Duration, log zerolog.Logger) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &Dispatcher{
		store:       store,
		prefs:       prefs,
		router:      router,
		engine:      engine,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		retention:   retention,
		log:         log.With().Str("component", "dispatcher").Logger(),
		now:         time.Now,
	}
}

// ProcessScheduledNotifications sweeps one bounded batch of due records and
// re-attempts channel delivery for each. Records that fail again stay
// pending for the next sweep until the attempt cap is reached.
func (d *Dispatcher) ProcessScheduledNotifications(ctx context.Context) error {
	now := d.now()
	due, err := d.store.GetDueForDelivery(now, d.batchSize)
	if err != nil {
		return fmt.Errorf("selecting due notifications: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	var delivered, failed int
	for i := range due {
		n := &due[i]
		if !n.HasChannelTargets() {
			// Nothing to attempt; the record waits as-is. Targets
			// registered later never retrofit existing records.
			continue
		}

		d.router.Attempt(ctx, n)

		if n.Status == models.StatusPending && n.DeliveryAttempts >= d.maxAttempts {
			if err := n.MarkFailed(); err == nil {
				failed++
				d.log.Warn().
					Uint("id", n.ID).
					Int("attempts", n.DeliveryAttempts).
					Msg("notification failed permanently")
			}
		} else if n.Status == models.StatusDelivered {
			delivered++
		}

		if err := d.store.Save(n); err != nil {
			d.log.Error().Uint("id", n.ID).Err(err).Msg("saving sweep result")
		}
	}

	d.log.Info().
		Int("batch", len(due)).
		Int("delivered", delivered).
		Int("failed", failed).
		Msg("sweep completed")
	return nil
}

// ProcessDailySummaries sends the daily digest to every recipient whose
// configured summary time, in their timezone, fell between the previous
// tick and now. Matching a window instead of the exact minute keeps the
// digest working at any tick cadence. Routed through the engine so type
// gating and the one-per-day cap apply.
func (d *Dispatcher) ProcessDailySummaries(ctx context.Context) error {
	now := d.now()
	last := d.lastSummary
	if last.IsZero() {
		last = now.Add(-time.Minute)
	}
	d.lastSummary = now

	recipients, err := d.prefs.ListDailySummaryEnabled(ctx)
	if err != nil {
		return fmt.Errorf("listing daily summary recipients: %w", err)
	}

	for i := range recipients {
		prefs := &recipients[i]
		if !summaryDue(prefs, last, now) {
			continue
		}

		unread, err := d.store.GetUnreadCount(prefs.RecipientID)
		if err != nil {
			d.log.Error().Str("recipient", prefs.RecipientID).Err(err).Msg("counting unread for summary")
			continue
		}

		_, err = d.engine.SendIfAllowed(ctx, prefs.RecipientID, SendInput{
			Title:    "Daily summary",
			Message:  fmt.Sprintf("You have %d unread notifications.", unread),
			Type:     TypeDailySummary,
			Priority: models.PriorityLow,
			DedupKey: now.UTC().Format("2006-01-02"),
			Data:     models.JSONMap{"unread_count": unread},
		})
		if err != nil {
			d.log.Error().Str("recipient", prefs.RecipientID).Err(err).Msg("sending daily summary")
		}
	}
	return nil
}

// PurgeExpired deletes records whose expiry lies further in the past than
// the retention window. Expired records are already invisible to every
// read path; purging only reclaims storage.
func (d *Dispatcher) PurgeExpired(ctx context.Context) error {
	cutoff := d.now().Add(-d.retention)
	purged, err := d.store.DeleteExpiredBefore(cutoff)
	if err != nil {
		return fmt.Errorf("purging expired notifications: %w", err)
	}
	if purged > 0 {
		d.log.Info().Int64("purged", purged).Msg("expired notifications purged")
	}
	return nil
}

// summaryDue reports whether the recipient's configured HH:MM has an
// occurrence in (last, now], evaluated in their quiet-hours timezone.
func summaryDue(prefs *models.NotificationPreferences, last, now time.Time) bool {
	occ, err := prefs.ReminderSettings.DailySummary.LastOccurrence(now, prefs.QuietHours.Location())
	if err != nil {
		return false
	}
	return occ.After(last)
}
