package notify

import (
	"fmt"
	"time"

	"github.com/crewdesk/backend/internal/models"
	"github.com/crewdesk/backend/internal/repositories"
)

// DedupGuard caps repeated same-day alerts for recurring threshold
// conditions. The "same day" window is always the UTC calendar day,
// regardless of the recipient's quiet-hours timezone.
type DedupGuard struct {
	store      repositories.NotificationRepository
	thresholds repositories.ThresholdRepository
	registry   *Registry
	now        func() time.Time
}

// NewDedupGuard creates a new DedupGuard.
func NewDedupGuard(store repositories.NotificationRepository, thresholds repositories.ThresholdRepository, registry *Registry) *DedupGuard {
	return &DedupGuard{
		store:      store,
		thresholds: thresholds,
		registry:   registry,
		now:        time.Now,
	}
}

// Allow reports whether another notification for the given
// recipient/type/key may be persisted today. Types without a daily cap, or
// sends without a dedup key, always pass.
func (g *DedupGuard) Allow(recipientID, notificationType, dedupKey string) (bool, error) {
	if dedupKey == "" {
		return true, nil
	}
	def, ok := g.registry.Lookup(notificationType)
	if !ok || def.DailyCap <= 0 {
		return true, nil
	}
	count, err := g.store.CountSameDay(recipientID, notificationType, dedupKey, g.now())
	if err != nil {
		return false, fmt.Errorf("counting same-day notifications: %w", err)
	}
	return count < int64(def.DailyCap), nil
}

// CheckThreshold applies the edge trigger for level-crossing alerts: it
// returns true only when the monitored value transitions from above the
// threshold to at-or-below it. Repeated checks while already below do not
// re-fire; the value must first rise back above the threshold.
//
// The very first observation of a value already at-or-below the threshold
// counts as a crossing — there is no prior "above" state to wait for.
func (g *DedupGuard) CheckThreshold(recipientID, notificationType, dedupKey string, value, threshold float64) (bool, error) {
	below := value <= threshold

	state, err := g.thresholds.Get(recipientID, notificationType, dedupKey)
	if err != nil {
		return false, fmt.Errorf("loading threshold state: %w", err)
	}

	wasBelow := state != nil && state.BelowThreshold
	crossed := below && !wasBelow

	next := &models.ThresholdState{
		RecipientID:    recipientID,
		Type:           notificationType,
		DedupKey:       dedupKey,
		LastValue:      value,
		BelowThreshold: below,
	}
	if state != nil {
		next.ID = state.ID
	}
	if err := g.thresholds.Upsert(next); err != nil {
		return false, fmt.Errorf("saving threshold state: %w", err)
	}
	return crossed, nil
}
