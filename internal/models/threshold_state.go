package models

import "time"

// ThresholdState tracks the last observed value of a monitored level
// (stock quantity, contract spend, ...) per recipient/type/key so the dedup
// guard can fire on the above-to-below crossing only (PostgreSQL).
type ThresholdState struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	RecipientID    string    `json:"recipient_id" gorm:"size:64;uniqueIndex:idx_threshold_key"`
	Type           string    `json:"type" gorm:"size:40;uniqueIndex:idx_threshold_key"`
	DedupKey       string    `json:"dedup_key" gorm:"size:128;uniqueIndex:idx_threshold_key"`
	LastValue      float64   `json:"last_value"`
	BelowThreshold bool      `json:"below_threshold"`
	UpdatedAt      time.Time `json:"updated_at"`
}
