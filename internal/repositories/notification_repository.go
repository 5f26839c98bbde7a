package repositories

import (
	"time"

	"github.com/crewdesk/backend/internal/models"
	"gorm.io/gorm"
)

// ListFilter narrows a recipient's notification listing.
type ListFilter struct {
	Status         models.Status
	Type           string
	Page           int
	Limit          int
	IncludeExpired bool
}

// Normalize returns the effective page and limit. The repository applies the
// same bounds, so handlers can reuse them for pagination metadata.
func (f ListFilter) Normalize() (page, limit int) {
	page = f.Page
	if page < 1 {
		page = 1
	}
	limit = f.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// TypeStatusCount is one row of the type-by-status aggregate.
type TypeStatusCount struct {
	Type   string        `json:"type"`
	Status models.Status `json:"status"`
	Count  int64         `json:"count"`
}

// NotificationRepository defines the interface for notification persistence
type NotificationRepository interface {
	Create(notification *models.Notification) error
	Save(notification *models.Notification) error
	GetByID(id uint) (*models.Notification, error)
	GetByRecipientID(recipientID string, filter ListFilter) ([]models.Notification, int64, error)
	GetUnreadCount(recipientID string) (int64, error)
	MarkAllAsRead(recipientID string) error
	CountSameDay(recipientID, notificationType, dedupKey string, day time.Time) (int64, error)
	GetDueForDelivery(now time.Time, limit int) ([]models.Notification, error)
	GetStats(recipientID string) ([]TypeStatusCount, error)
	DeleteExpiredBefore(cutoff time.Time) (int64, error)
}

type postgresNotificationRepository struct {
	db *gorm.DB
}

func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) Create(notification *models.Notification) error {
	return r.db.Create(notification).Error
}

// Save persists a mutated record (status, channel responses, timestamps).
func (r *postgresNotificationRepository) Save(notification *models.Notification) error {
	return r.db.Save(notification).Error
}

func (r *postgresNotificationRepository) GetByID(id uint) (*models.Notification, error) {
	var notification models.Notification
	if err := r.db.First(&notification, id).Error; err != nil {
		return nil, err
	}
	return &notification, nil
}

func (r *postgresNotificationRepository) GetByRecipientID(recipientID string, filter ListFilter) ([]models.Notification, int64, error) {
	var notifications []models.Notification
	var total int64

	query := r.db.Model(&models.Notification{}).Where("recipient_id = ?", recipientID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	} else {
		// archived records only show up when asked for explicitly
		query = query.Where("status <> ?", models.StatusArchived)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if !filter.IncludeExpired {
		query = query.Where("expires_at IS NULL OR expires_at > ?", time.Now().UTC())
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := filter.Normalize()
	offset := (page - 1) * limit

	err := query.Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&notifications).Error

	return notifications, total, err
}

func (r *postgresNotificationRepository) GetUnreadCount(recipientID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND status IN ?", recipientID, []models.Status{models.StatusSent, models.StatusDelivered}).
		Where("expires_at IS NULL OR expires_at > ?", time.Now().UTC()).
		Count(&count).Error
	return count, err
}

func (r *postgresNotificationRepository) MarkAllAsRead(recipientID string) error {
	now := time.Now().UTC()
	return r.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND status IN ?", recipientID, []models.Status{models.StatusSent, models.StatusDelivered}).
		Updates(map[string]interface{}{"status": models.StatusRead, "read_at": now}).Error
}

// CountSameDay counts records created within the same UTC calendar day as
// day for the given recipient/type/key. The dedup window is always UTC,
// independent of the recipient's quiet-hours timezone.
func (r *postgresNotificationRepository) CountSameDay(recipientID, notificationType, dedupKey string, day time.Time) (int64, error) {
	utc := day.UTC()
	dayStart := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var count int64
	err := r.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND type = ? AND dedup_key = ?", recipientID, notificationType, dedupKey).
		Where("created_at >= ? AND created_at < ?", dayStart, dayEnd).
		Count(&count).Error
	return count, err
}

// GetDueForDelivery selects a bounded batch of records still awaiting a
// successful channel attempt: pending or sent, with no deferral or a
// deferral that has elapsed. Expired records are skipped, as are records
// without any channel target — there is nothing to attempt for them, and
// letting them through would let a targetless backlog occupy the batch head
// on every sweep and starve due records behind it.
func (r *postgresNotificationRepository) GetDueForDelivery(now time.Time, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.
		Where("status IN ?", []models.Status{models.StatusPending, models.StatusSent}).
		Where("scheduled_for IS NULL OR scheduled_for <= ?", now).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Where("push_token <> '' OR web_push_subscription <> ''").
		Order("created_at ASC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

// DeleteExpiredBefore removes records whose expiry passed before cutoff.
// Records without an expiry are never purged.
func (r *postgresNotificationRepository) DeleteExpiredBefore(cutoff time.Time) (int64, error) {
	res := r.db.
		Where("expires_at IS NOT NULL AND expires_at <= ?", cutoff).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}

func (r *postgresNotificationRepository) GetStats(recipientID string) ([]TypeStatusCount, error) {
	var stats []TypeStatusCount
	err := r.db.Model(&models.Notification{}).
		Select("type, status, COUNT(*) as count").
		Where("recipient_id = ?", recipientID).
		Group("type, status").
		Order("type, status").
		Scan(&stats).Error
	return stats, err
}
