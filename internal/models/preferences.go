package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NotificationPreferences holds the per-recipient settings (MongoDB).
// Exactly one document per recipient, lazily created on first access.
type NotificationPreferences struct {
	RecipientID         string               `json:"recipient_id" bson:"recipient_id"`
	PushEnabled         bool                 `json:"push_enabled" bson:"push_enabled"`
	NotificationTypes   map[string]bool      `json:"notification_types" bson:"notification_types"`
	QuietHours          QuietHours           `json:"quiet_hours" bson:"quiet_hours"`
	ReminderSettings    ReminderSettings     `json:"reminder_settings" bson:"reminder_settings"`
	PushToken           string               `json:"push_token,omitempty" bson:"push_token,omitempty"`
	WebPushSubscription *WebPushSubscription `json:"web_push_subscription,omitempty" bson:"web_push_subscription,omitempty"`
	CreatedAt           time.Time            `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at" bson:"updated_at"`
}

// QuietHours is a wall-clock window during which non-urgent delivery is
// deferred. The window may wrap midnight (e.g. 22:00-08:00).
type QuietHours struct {
	Enabled   bool   `json:"enabled" bson:"enabled"`
	StartTime string `json:"start_time" bson:"start_time"` // "HH:MM", 24h
	EndTime   string `json:"end_time" bson:"end_time"`     // "HH:MM", 24h
	Timezone  string `json:"timezone" bson:"timezone"`     // IANA, e.g. "Europe/Berlin"
}

// ReminderSettings configures the recipient's reminder cadences.
type ReminderSettings struct {
	Deadline            DeadlineReminder `json:"deadline" bson:"deadline"`
	TaskInactivityHours int              `json:"task_inactivity_hours" bson:"task_inactivity_hours"`
	DailySummary        DailySummary     `json:"daily_summary" bson:"daily_summary"`
}

// DeadlineReminder controls how far ahead of a deadline to notify.
type DeadlineReminder struct {
	HoursBefore int  `json:"hours_before" bson:"hours_before"`
	Repeat      bool `json:"repeat" bson:"repeat"`
}

// DailySummary controls the once-a-day digest notification.
type DailySummary struct {
	Enabled bool   `json:"enabled" bson:"enabled"`
	Time    string `json:"time" bson:"time"` // "HH:MM" in the quiet-hours timezone
}

// LastOccurrence returns the most recent occurrence of the configured HH:MM
// at or before now in the given location, rolling back to the previous
// calendar day when today's occurrence is still ahead.
func (d DailySummary) LastOccurrence(now time.Time, loc *time.Location) (time.Time, error) {
	mod, err := parseMinuteOfDay(d.Time)
	if err != nil {
		return time.Time{}, err
	}
	local := now.In(loc)
	occ := time.Date(local.Year(), local.Month(), local.Day(), mod/60, mod%60, 0, 0, loc)
	if occ.After(local) {
		occ = occ.AddDate(0, 0, -1)
	}
	return occ, nil
}

// WebPushSubscription is a browser push subscription (endpoint + keys).
type WebPushSubscription struct {
	Endpoint string      `json:"endpoint" bson:"endpoint"`
	Keys     WebPushKeys `json:"keys" bson:"keys"`
}

// WebPushKeys holds the client encryption keys.
type WebPushKeys struct {
	P256dh string `json:"p256dh" bson:"p256dh"`
	Auth   string `json:"auth" bson:"auth"`
}

// DefaultPreferences returns the engine defaults applied on first access:
// push enabled, all registered types enabled, quiet hours disabled.
func DefaultPreferences(recipientID string, types []string) *NotificationPreferences {
	enabled := make(map[string]bool, len(types))
	for _, t := range types {
		enabled[t] = true
	}
	now := time.Now().UTC()
	return &NotificationPreferences{
		RecipientID:       recipientID,
		PushEnabled:       true,
		NotificationTypes: enabled,
		QuietHours: QuietHours{
			Enabled:   false,
			StartTime: "22:00",
			EndTime:   "08:00",
			Timezone:  "UTC",
		},
		ReminderSettings: ReminderSettings{
			Deadline:            DeadlineReminder{HoursBefore: 24, Repeat: false},
			TaskInactivityHours: 48,
			DailySummary:        DailySummary{Enabled: false, Time: "09:00"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TypeEnabled reports whether the given notification type should reach this
// recipient at all: the global switch and the per-type toggle must both be
// on. Types absent from the map are disabled.
func (p *NotificationPreferences) TypeEnabled(notificationType string) bool {
	return p.PushEnabled && p.NotificationTypes[notificationType]
}

// Location resolves the quiet-hours timezone, falling back to UTC.
func (q QuietHours) Location() *time.Location {
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Contains reports whether now falls inside the quiet-hours window in the
// recipient's timezone. A window with start < end is a same-day window;
// otherwise it wraps midnight.
func (q QuietHours) Contains(now time.Time) bool {
	if !q.Enabled {
		return false
	}
	start, err := parseMinuteOfDay(q.StartTime)
	if err != nil {
		return false
	}
	end, err := parseMinuteOfDay(q.EndTime)
	if err != nil {
		return false
	}
	local := now.In(q.Location())
	t := local.Hour()*60 + local.Minute()
	if start < end {
		return t >= start && t <= end
	}
	return t >= start || t <= end
}

// NextEnd returns the next occurrence of the quiet-hours end time after now,
// in the recipient's timezone, rolling to the next calendar day if the end
// time has already passed today.
func (q QuietHours) NextEnd(now time.Time) (time.Time, error) {
	end, err := parseMinuteOfDay(q.EndTime)
	if err != nil {
		return time.Time{}, err
	}
	local := now.In(q.Location())
	next := time.Date(local.Year(), local.Month(), local.Day(), end/60, end%60, 0, 0, local.Location())
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}

func parseMinuteOfDay(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}
