package notify

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/crewdesk/backend/internal/channels"
	"github.com/crewdesk/backend/internal/models"
	"github.com/crewdesk/backend/internal/repositories"
)

// fakeNotificationStore is an in-memory NotificationRepository.
type fakeNotificationStore struct {
	mu      sync.Mutex
	nextID  uint
	records map[uint]*models.Notification
	now     func() time.Time

	failCreate error // when set, Create returns it
}

func newFakeNotificationStore(now func() time.Time) *fakeNotificationStore {
	return &fakeNotificationStore{records: map[uint]*models.Notification{}, now: now}
}

func (s *fakeNotificationStore) Create(n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return s.failCreate
	}
	s.nextID++
	n.ID = s.nextID
	n.CreatedAt = s.now()
	n.UpdatedAt = n.CreatedAt
	cp := *n
	s.records[n.ID] = &cp
	return nil
}

func (s *fakeNotificationStore) Save(n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[n.ID]; !ok {
		return errors.New("record not found")
	}
	n.UpdatedAt = s.now()
	cp := *n
	s.records[n.ID] = &cp
	return nil
}

func (s *fakeNotificationStore) GetByID(id uint) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.records[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	cp := *n
	return &cp, nil
}

func (s *fakeNotificationStore) GetByRecipientID(recipientID string, filter repositories.ListFilter) ([]models.Notification, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.records {
		if n.RecipientID != recipientID {
			continue
		}
		if filter.Status != "" && n.Status != filter.Status {
			continue
		}
		if filter.Status == "" && n.Status == models.StatusArchived {
			continue
		}
		if filter.Type != "" && n.Type != filter.Type {
			continue
		}
		if !filter.IncludeExpired && n.Expired(s.now()) {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (s *fakeNotificationStore) GetUnreadCount(recipientID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, n := range s.records {
		if n.RecipientID == recipientID &&
			(n.Status == models.StatusSent || n.Status == models.StatusDelivered) &&
			!n.Expired(s.now()) {
			count++
		}
	}
	return count, nil
}

func (s *fakeNotificationStore) MarkAllAsRead(recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, n := range s.records {
		if n.RecipientID == recipientID &&
			(n.Status == models.StatusSent || n.Status == models.StatusDelivered) {
			n.Status = models.StatusRead
			n.ReadAt = &now
		}
	}
	return nil
}

func (s *fakeNotificationStore) CountSameDay(recipientID, notificationType, dedupKey string, day time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	utc := day.UTC()
	dayStart := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)
	var count int64
	for _, n := range s.records {
		if n.RecipientID == recipientID && n.Type == notificationType && n.DedupKey == dedupKey &&
			!n.CreatedAt.UTC().Before(dayStart) && n.CreatedAt.UTC().Before(dayEnd) {
			count++
		}
	}
	return count, nil
}

func (s *fakeNotificationStore) GetDueForDelivery(now time.Time, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.records {
		if n.Status != models.StatusPending && n.Status != models.StatusSent {
			continue
		}
		if n.ScheduledFor != nil && n.ScheduledFor.After(now) {
			continue
		}
		if n.Expired(now) {
			continue
		}
		if !n.HasChannelTargets() {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeNotificationStore) DeleteExpiredBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for id, n := range s.records {
		if n.ExpiresAt != nil && !n.ExpiresAt.After(cutoff) {
			delete(s.records, id)
			purged++
		}
	}
	return purged, nil
}

func (s *fakeNotificationStore) GetStats(recipientID string) ([]repositories.TypeStatusCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[[2]string]int64{}
	for _, n := range s.records {
		if n.RecipientID == recipientID {
			counts[[2]string{n.Type, string(n.Status)}]++
		}
	}
	var stats []repositories.TypeStatusCount
	for k, v := range counts {
		stats = append(stats, repositories.TypeStatusCount{Type: k[0], Status: models.Status(k[1]), Count: v})
	}
	return stats, nil
}

func (s *fakeNotificationStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func listFilterAll() repositories.ListFilter {
	return repositories.ListFilter{Page: 1, Limit: 50, IncludeExpired: true}
}

// fakePreferenceStore is an in-memory PreferenceRepository.
type fakePreferenceStore struct {
	mu    sync.Mutex
	prefs map[string]*models.NotificationPreferences
}

func newFakePreferenceStore() *fakePreferenceStore {
	return &fakePreferenceStore{prefs: map[string]*models.NotificationPreferences{}}
}

func (s *fakePreferenceStore) put(p *models.NotificationPreferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[p.RecipientID] = p
}

func (s *fakePreferenceStore) GetOrCreate(_ context.Context, recipientID string, defaultTypes []string) (*models.NotificationPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.prefs[recipientID]; ok {
		cp := *p
		return &cp, nil
	}
	p := models.DefaultPreferences(recipientID, defaultTypes)
	s.prefs[recipientID] = p
	cp := *p
	return &cp, nil
}

func (s *fakePreferenceStore) Update(_ context.Context, prefs *models.NotificationPreferences) error {
	s.put(prefs)
	return nil
}

func (s *fakePreferenceStore) UpdatePushToken(_ context.Context, recipientID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.prefs[recipientID]; ok {
		p.PushToken = token
	}
	return nil
}

func (s *fakePreferenceStore) UpdateWebPushSubscription(_ context.Context, recipientID string, sub *models.WebPushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.prefs[recipientID]; ok {
		p.WebPushSubscription = sub
	}
	return nil
}

func (s *fakePreferenceStore) ListDailySummaryEnabled(_ context.Context) ([]models.NotificationPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.NotificationPreferences
	for _, p := range s.prefs {
		if p.ReminderSettings.DailySummary.Enabled {
			out = append(out, *p)
		}
	}
	return out, nil
}

// fakeThresholdStore is an in-memory ThresholdRepository.
type fakeThresholdStore struct {
	mu     sync.Mutex
	states map[string]*models.ThresholdState
}

func newFakeThresholdStore() *fakeThresholdStore {
	return &fakeThresholdStore{states: map[string]*models.ThresholdState{}}
}

func (s *fakeThresholdStore) key(recipientID, t, k string) string {
	return recipientID + "|" + t + "|" + k
}

func (s *fakeThresholdStore) Get(recipientID, notificationType, dedupKey string) (*models.ThresholdState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[s.key(recipientID, notificationType, dedupKey)]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (s *fakeThresholdStore) Upsert(state *models.ThresholdState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *state
	s.states[s.key(state.RecipientID, state.Type, state.DedupKey)] = &cp
	return nil
}

// fakeChannel is a scriptable Channel.
type fakeChannel struct {
	mu    sync.Mutex
	name  string
	ack   string
	err   error
	calls []string // targets seen
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Send(_ context.Context, target string, _ channels.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, target)
	if c.err != nil {
		return "", c.err
	}
	return c.ack, nil
}

func (c *fakeChannel) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}
