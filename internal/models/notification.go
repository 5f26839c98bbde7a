package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Priority levels for a notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Status is the lifecycle state of a notification.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
	StatusArchived  Status = "archived"
)

// ErrInvalidTransition signals a status transition the lifecycle does not
// permit. Hitting it is a programming error in the caller, not a runtime
// condition to recover from.
var ErrInvalidTransition = errors.New("invalid notification status transition")

// validTransitions encodes the monotonic lifecycle:
// pending -> sent/delivered -> read -> archived, pending -> failed after the
// delivery attempt cap, and any non-archived state -> archived.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusSent, StatusDelivered, StatusFailed, StatusArchived},
	StatusSent:      {StatusDelivered, StatusRead, StatusArchived},
	StatusDelivered: {StatusRead, StatusArchived},
	StatusRead:      {StatusArchived},
	StatusFailed:    {StatusArchived},
	StatusArchived:  {},
}

// JSONMap is a free-form payload stored as a JSON column.
type JSONMap map[string]interface{}

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported type for JSONMap: %T", value)
	}
}

// Notification represents one per-recipient delivery attempt unit (PostgreSQL)
type Notification struct {
	ID                  uint       `json:"id" gorm:"primaryKey"`
	RequestID           string     `json:"request_id" gorm:"size:36;index"`
	RecipientID         string     `json:"recipient_id" gorm:"size:64;index;not null"`
	SenderID            string     `json:"sender_id,omitempty" gorm:"size:64"`
	Title               string     `json:"title" gorm:"not null"`
	Message             string     `json:"message" gorm:"not null"`
	Type                string     `json:"type" gorm:"size:40;index"` // task_assigned, stock_low, contract_exceeded, ...
	Priority            Priority   `json:"priority" gorm:"size:10;default:medium"`
	Status              Status     `json:"status" gorm:"size:10;default:pending;index"`
	RelatedEntityType   string     `json:"related_entity_type,omitempty" gorm:"size:30"` // task, material, contract, ...
	RelatedEntityID     string     `json:"related_entity_id,omitempty" gorm:"size:64"`
	DedupKey            string     `json:"dedup_key,omitempty" gorm:"size:128;index"`
	Data                JSONMap    `json:"data,omitempty" gorm:"type:jsonb"`
	PushToken           string     `json:"-" gorm:"size:512"`
	WebPushSubscription string     `json:"-" gorm:"type:text"`
	ChannelResponses    JSONMap    `json:"channel_responses,omitempty" gorm:"type:jsonb"`
	DeliveryAttempts    int        `json:"delivery_attempts" gorm:"default:0"`
	ScheduledFor        *time.Time `json:"scheduled_for,omitempty" gorm:"index"`
	SentAt              *time.Time `json:"sent_at,omitempty"`
	ReadAt              *time.Time `json:"read_at,omitempty"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// TransitionTo moves the notification to the given status, enforcing the
// lifecycle. Returns ErrInvalidTransition for anything the machine forbids.
func (n *Notification) TransitionTo(next Status) error {
	for _, allowed := range validTransitions[n.Status] {
		if allowed == next {
			n.Status = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, n.Status, next)
}

// MarkDelivered records a successful channel acknowledgment.
func (n *Notification) MarkDelivered(now time.Time) error {
	if err := n.TransitionTo(StatusDelivered); err != nil {
		return err
	}
	n.SentAt = &now
	return nil
}

// MarkRead is idempotent: a notification already read stays read and only
// re-stamps ReadAt.
func (n *Notification) MarkRead(now time.Time) error {
	if n.Status == StatusRead {
		n.ReadAt = &now
		return nil
	}
	if err := n.TransitionTo(StatusRead); err != nil {
		return err
	}
	n.ReadAt = &now
	return nil
}

// Archive moves the notification to the terminal archived state.
func (n *Notification) Archive() error {
	return n.TransitionTo(StatusArchived)
}

// MarkFailed moves a perpetually pending notification to the terminal failed
// state once the delivery attempt cap is reached.
func (n *Notification) MarkFailed() error {
	return n.TransitionTo(StatusFailed)
}

// Expired reports whether the notification has passed its ExpiresAt.
// Expired records are excluded from active listings but never deleted here.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && n.ExpiresAt.Before(now)
}

// HasChannelTargets reports whether at least one delivery address was
// resolved onto the record at send time.
func (n *Notification) HasChannelTargets() bool {
	return n.PushToken != "" || n.WebPushSubscription != ""
}
