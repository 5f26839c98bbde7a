package repositories

import (
	"errors"
	"time"

	"github.com/crewdesk/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ThresholdRepository persists the last observed value of monitored levels
// so level-crossing alerts fire on the downward edge only.
type ThresholdRepository interface {
	Get(recipientID, notificationType, dedupKey string) (*models.ThresholdState, error)
	Upsert(state *models.ThresholdState) error
}

type postgresThresholdRepository struct {
	db *gorm.DB
}

func NewPostgresThresholdRepository(db *gorm.DB) ThresholdRepository {
	return &postgresThresholdRepository{db: db}
}

// Get returns the stored state, or nil when the level was never observed.
func (r *postgresThresholdRepository) Get(recipientID, notificationType, dedupKey string) (*models.ThresholdState, error) {
	var state models.ThresholdState
	err := r.db.Where("recipient_id = ? AND type = ? AND dedup_key = ?", recipientID, notificationType, dedupKey).
		First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *postgresThresholdRepository) Upsert(state *models.ThresholdState) error {
	state.UpdatedAt = time.Now().UTC()
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "recipient_id"}, {Name: "type"}, {Name: "dedup_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_value", "below_threshold", "updated_at"}),
	}).Create(state).Error
}
