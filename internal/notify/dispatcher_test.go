package notify

import (
	"context"
	"testing"
	"time"

	"github.com/crewdesk/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatcherFixture(t *testing.T, clock time.Time, batchSize, maxAttempts int) (*Dispatcher, *engineFixture) {
	t.Helper()
	f := newEngineFixture(t, clock)
	d := NewDispatcher(f.store, f.prefs, f.router, f.engine, batchSize, maxAttempts, 0, f.router.log)
	d.now = func() time.Time { return f.clock }
	return d, f
}

func seedPending(t *testing.T, f *engineFixture, token string, scheduledFor *time.Time) *models.Notification {
	t.Helper()
	n := &models.Notification{
		RecipientID: "emp-1", Title: "t", Message: "m", Type: TypeReminder,
		Priority: models.PriorityMedium, Status: models.StatusPending,
		PushToken: token, ScheduledFor: scheduledFor,
	}
	require.NoError(t, f.store.Create(n))
	return n
}

func TestSweepDeliversDueDeferred(t *testing.T) {
	clock := time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)
	d, f := newDispatcherFixture(t, clock, 100, 10)

	due := clock.Add(-time.Minute)
	n := seedPending(t, f, "tok", &due)

	require.NoError(t, d.ProcessScheduledNotifications(context.Background()))

	got, err := f.store.GetByID(n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, got.Status)
	assert.Equal(t, 1, got.DeliveryAttempts)
	assert.Equal(t, 1, f.mobile.callCount())
}

func TestSweepSkipsNotYetDue(t *testing.T) {
	clock := time.Date(2025, 3, 11, 7, 0, 0, 0, time.UTC)
	d, f := newDispatcherFixture(t, clock, 100, 10)

	due := clock.Add(time.Hour)
	n := seedPending(t, f, "tok", &due)

	require.NoError(t, d.ProcessScheduledNotifications(context.Background()))

	got, err := f.store.GetByID(n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, 0, f.mobile.callCount())
}

func TestSweepNoTargetsLeavesPendingForever(t *testing.T) {
	clock := time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)
	d, f := newDispatcherFixture(t, clock, 100, 3)

	n := seedPending(t, f, "", nil)

	// N sweeps: record keeps waiting, consumes no attempts, never fails
	for i := 0; i < 5; i++ {
		require.NoError(t, d.ProcessScheduledNotifications(context.Background()))
		f.clock = f.clock.Add(time.Minute)
	}

	got, err := f.store.GetByID(n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, 0, got.DeliveryAttempts)
}

func TestSweepTargetlessBacklogDoesNotStarveDue(t *testing.T) {
	clock := time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)
	d, f := newDispatcherFixture(t, clock, 5, 10)

	// a backlog of older targetless records as large as the batch
	for i := 0; i < 5; i++ {
		seedPending(t, f, "", nil)
		f.clock = f.clock.Add(time.Second)
	}
	due := f.clock.Add(-time.Second)
	n := seedPending(t, f, "tok", &due)

	for i := 0; i < 10; i++ {
		require.NoError(t, d.ProcessScheduledNotifications(context.Background()))
		f.clock = f.clock.Add(time.Minute)
	}

	got, err := f.store.GetByID(n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, got.Status)
	assert.Equal(t, 1, f.mobile.callCount())
}

func TestSweepFailsAfterAttemptCap(t *testing.T) {
	clock := time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)
	d, f := newDispatcherFixture(t, clock, 100, 3)
	f.mobile.err = assert.AnError

	n := seedPending(t, f, "tok", nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, d.ProcessScheduledNotifications(context.Background()))
		f.clock = f.clock.Add(time.Minute)
	}

	got, err := f.store.GetByID(n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, 3, got.DeliveryAttempts)

	// failed records leave the sweep population
	calls := f.mobile.callCount()
	require.NoError(t, d.ProcessScheduledNotifications(context.Background()))
	assert.Equal(t, calls, f.mobile.callCount())
}

func TestSweepBoundsBatchSize(t *testing.T) {
	clock := time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)
	d, f := newDispatcherFixture(t, clock, 2, 10)

	for i := 0; i < 5; i++ {
		seedPending(t, f, "tok", nil)
		f.clock = f.clock.Add(time.Second)
	}

	require.NoError(t, d.ProcessScheduledNotifications(context.Background()))
	assert.Equal(t, 2, f.mobile.callCount(), "one sweep attempts at most batchSize records")
}

func TestDailySummarySentAtConfiguredMinute(t *testing.T) {
	clock := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	d, f := newDispatcherFixture(t, clock, 100, 10)

	p := f.prefsWithToken("emp-1")
	p.ReminderSettings.DailySummary = models.DailySummary{Enabled: true, Time: "09:00"}
	f.prefs.put(p)

	require.NoError(t, d.ProcessDailySummaries(context.Background()))

	list, total, err := f.store.GetByRecipientID("emp-1", listFilterAll())
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, TypeDailySummary, list[0].Type)

	// a restarted dispatcher re-matches the same minute; the one-per-day
	// cap suppresses the duplicate
	d.lastSummary = time.Time{}
	require.NoError(t, d.ProcessDailySummaries(context.Background()))
	_, total, err = f.store.GetByRecipientID("emp-1", listFilterAll())
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestDailySummaryWrongMinuteSkipped(t *testing.T) {
	clock := time.Date(2025, 3, 11, 9, 30, 0, 0, time.UTC)
	d, f := newDispatcherFixture(t, clock, 100, 10)

	p := f.prefsWithToken("emp-1")
	p.ReminderSettings.DailySummary = models.DailySummary{Enabled: true, Time: "09:00"}
	f.prefs.put(p)

	require.NoError(t, d.ProcessDailySummaries(context.Background()))
	assert.Equal(t, 0, f.store.count())
}

func TestPurgeExpiredHonorsRetention(t *testing.T) {
	clock := time.Date(2025, 3, 11, 3, 30, 0, 0, time.UTC)
	d, f := newDispatcherFixture(t, clock, 100, 10)

	longGone := clock.Add(-40 * 24 * time.Hour)
	recent := clock.Add(-24 * time.Hour)

	old := seedPending(t, f, "tok", nil)
	old.ExpiresAt = &longGone
	require.NoError(t, f.store.Save(old))
	fresh := seedPending(t, f, "tok", nil)
	fresh.ExpiresAt = &recent
	require.NoError(t, f.store.Save(fresh))
	unbounded := seedPending(t, f, "tok", nil)

	require.NoError(t, d.PurgeExpired(context.Background()))

	_, err := f.store.GetByID(old.ID)
	assert.Error(t, err, "records expired beyond retention are removed")
	_, err = f.store.GetByID(fresh.ID)
	assert.NoError(t, err, "recently expired records are retained")
	_, err = f.store.GetByID(unbounded.ID)
	assert.NoError(t, err, "records without expiry are never purged")
}

func TestDailySummaryFiresOnCoarseCadence(t *testing.T) {
	clock := time.Date(2025, 3, 11, 8, 58, 0, 0, time.UTC)
	d, f := newDispatcherFixture(t, clock, 100, 10)

	p := f.prefsWithToken("emp-1")
	p.ReminderSettings.DailySummary = models.DailySummary{Enabled: true, Time: "09:00"}
	f.prefs.put(p)

	// ticks every five minutes; 09:00 falls between the two
	require.NoError(t, d.ProcessDailySummaries(context.Background()))
	assert.Equal(t, 0, f.store.count())

	f.clock = time.Date(2025, 3, 11, 9, 3, 0, 0, time.UTC)
	require.NoError(t, d.ProcessDailySummaries(context.Background()))

	list, total, err := f.store.GetByRecipientID("emp-1", listFilterAll())
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, TypeDailySummary, list[0].Type)
}
