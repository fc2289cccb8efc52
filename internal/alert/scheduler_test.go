package alert

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/pantry/internal/domain"
	"github.com/rezkam/pantry/internal/remote"
	"github.com/rezkam/pantry/internal/remote/memory"
)

// recordingNotifier tracks registrations for assertions.
type recordingNotifier struct {
	mu          sync.Mutex
	registered  map[string]time.Time
	registers   int
	unregisters []string
	registerErr error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{registered: make(map[string]time.Time)}
}

func (n *recordingNotifier) Register(ctx context.Context, notif domain.Notification, at time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.registerErr != nil {
		return n.registerErr
	}
	n.registered[notif.ItemID] = at
	n.registers++
	return nil
}

func (n *recordingNotifier) Unregister(ctx context.Context, itemID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.registered, itemID)
	n.unregisters = append(n.unregisters, itemID)
	return nil
}

func (n *recordingNotifier) registerCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.registers
}

func fixedNow() time.Time {
	return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newTestScheduler(notifier Notifier, records *Records) *Scheduler {
	s := NewScheduler(notifier, records, DefaultConfig())
	s.now = fixedNow
	return s
}

func alertedItem(t *testing.T, listID string, option domain.AlertOption) domain.Item {
	t.Helper()
	item, err := domain.NewItem(listID, "Milk", "", domain.ExpiresOn(date(2026, 6, 20)))
	require.NoError(t, err)
	item.Alert = option
	return item
}

func TestScheduleOrReplace_AtMostOneTrigger(t *testing.T) {
	notifier := newRecordingNotifier()
	s := newTestScheduler(notifier, nil)
	ctx := context.Background()

	item := alertedItem(t, "list-1", domain.OnDayOf())

	s.ScheduleOrReplace(ctx, item)
	at, ok := s.Installed(item.ID)
	require.True(t, ok)
	assert.True(t, at9(2026, 6, 20).Equal(at))
	assert.Equal(t, 1, notifier.registerCount())

	// Same item, same option: nothing to replace.
	s.ScheduleOrReplace(ctx, item)
	assert.Equal(t, 1, notifier.registerCount())

	// A different option replaces the single trigger.
	item.Alert = domain.DaysBefore(3)
	s.ScheduleOrReplace(ctx, item)
	at, ok = s.Installed(item.ID)
	require.True(t, ok)
	assert.True(t, at9(2026, 6, 17).Equal(at))
	assert.Equal(t, 2, notifier.registerCount())

	notifier.mu.Lock()
	assert.Len(t, notifier.registered, 1)
	notifier.mu.Unlock()
}

func TestScheduleOrReplace_InvalidTriggerCancels(t *testing.T) {
	notifier := newRecordingNotifier()
	s := newTestScheduler(notifier, nil)
	ctx := context.Background()

	item := alertedItem(t, "list-1", domain.OnDayOf())
	s.ScheduleOrReplace(ctx, item)
	_, ok := s.Installed(item.ID)
	require.True(t, ok)

	// The trigger recomputes into the past once the expiration regresses.
	item.Expiration = domain.ExpiresOn(date(2026, 5, 1))
	s.ScheduleOrReplace(ctx, item)

	_, ok = s.Installed(item.ID)
	assert.False(t, ok)
	assert.Contains(t, notifier.unregisters, item.ID)
}

func TestScheduleOrReplace_RegisterFailureRollsBack(t *testing.T) {
	notifier := newRecordingNotifier()
	notifier.registerErr = errors.New("platform refused")
	s := newTestScheduler(notifier, nil)

	item := alertedItem(t, "list-1", domain.OnDayOf())
	s.ScheduleOrReplace(context.Background(), item)

	_, ok := s.Installed(item.ID)
	assert.False(t, ok)
}

// gatedNotifier holds Register until released, to interleave other
// scheduler calls with an in-flight registration.
type gatedNotifier struct {
	*recordingNotifier
	entered chan struct{}
	release chan struct{}
}

func newGatedNotifier() *gatedNotifier {
	return &gatedNotifier{
		recordingNotifier: newRecordingNotifier(),
		entered:           make(chan struct{}),
		release:           make(chan struct{}),
	}
}

func (g *gatedNotifier) Register(ctx context.Context, n domain.Notification, at time.Time) error {
	g.entered <- struct{}{}
	<-g.release
	return g.recordingNotifier.Register(ctx, n, at)
}

func TestScheduleOrReplace_CancelDuringRegistration(t *testing.T) {
	notifier := newGatedNotifier()
	s := newTestScheduler(notifier, nil)
	ctx := context.Background()

	item := alertedItem(t, "list-1", domain.OnDayOf())

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.ScheduleOrReplace(ctx, item)
	}()

	<-notifier.entered
	s.Cancel(ctx, item.ID)
	notifier.release <- struct{}{}
	<-done

	// The cancel won: no tracked trigger and no live platform alert left
	// behind by the registration that completed afterwards.
	_, ok := s.Installed(item.ID)
	assert.False(t, ok)

	notifier.mu.Lock()
	assert.Empty(t, notifier.registered)
	notifier.mu.Unlock()
}

func TestCancelAll_OnlyTargetsList(t *testing.T) {
	notifier := newRecordingNotifier()
	s := newTestScheduler(notifier, nil)
	ctx := context.Background()

	a := alertedItem(t, "list-1", domain.OnDayOf())
	b := alertedItem(t, "list-1", domain.DaysBefore(2))
	c := alertedItem(t, "list-2", domain.OnDayOf())
	s.ScheduleOrReplace(ctx, a)
	s.ScheduleOrReplace(ctx, b)
	s.ScheduleOrReplace(ctx, c)

	s.CancelAll(ctx, "list-1")

	_, ok := s.Installed(a.ID)
	assert.False(t, ok)
	_, ok = s.Installed(b.ID)
	assert.False(t, ok)
	_, ok = s.Installed(c.ID)
	assert.True(t, ok)
}

func TestHandle_EventDriven(t *testing.T) {
	notifier := newRecordingNotifier()
	s := newTestScheduler(notifier, nil)
	ctx := context.Background()

	item := alertedItem(t, "list-1", domain.OnDayOf())

	s.handle(ctx, domain.ItemAdded{Item: item})
	_, ok := s.Installed(item.ID)
	assert.True(t, ok)

	// Clearing the alert on update cancels the trigger.
	cleared := item
	cleared.Alert = domain.NoAlert()
	s.handle(ctx, domain.ItemUpdated{Item: cleared})
	_, ok = s.Installed(item.ID)
	assert.False(t, ok)

	// A fetch reinstates triggers for every alerted item.
	other := alertedItem(t, "list-1", domain.DaysBefore(1))
	s.handle(ctx, domain.ItemsFetched{ListID: "list-1", Items: []domain.Item{item, other}})
	_, ok = s.Installed(item.ID)
	assert.True(t, ok)
	_, ok = s.Installed(other.ID)
	assert.True(t, ok)

	s.handle(ctx, domain.ItemsRemoved{Items: []domain.Item{item}})
	_, ok = s.Installed(item.ID)
	assert.False(t, ok)

	list, err := domain.NewList("Fridge", fixedNow())
	require.NoError(t, err)
	list.ID = "list-1"
	s.handle(ctx, domain.ListsRemoved{Lists: []domain.List{list}})
	_, ok = s.Installed(other.ID)
	assert.False(t, ok)
}

func TestScheduler_PersistsNotificationRecords(t *testing.T) {
	store := memory.NewStore()
	notifier := newRecordingNotifier()
	s := newTestScheduler(notifier, NewRecords(store, 0))
	ctx := context.Background()

	item := alertedItem(t, "list-1", domain.OnDayOf())
	s.ScheduleOrReplace(ctx, item)

	rec, err := store.Read(ctx, remote.KindNotification, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "list-1", rec.Fields[remote.RefListID])
	assert.Equal(t, string(domain.AlertOnDayOf), rec.Fields["alert_kind"])

	s.Cancel(ctx, item.ID)
	_, err = store.Read(ctx, remote.KindNotification, item.ID)
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestLocalNotifier_FiresOnce(t *testing.T) {
	var fired atomic.Int32
	n := NewLocalNotifier(func(domain.Notification) { fired.Add(1) })
	ctx := context.Background()

	notif := domain.Notification{ItemID: "item-1", ListID: "list-1"}
	require.NoError(t, n.Register(ctx, notif, time.Now().Add(20*time.Millisecond)))

	require.Eventually(t, func() bool { return fired.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, n.Pending())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestLocalNotifier_UnregisterPreventsFire(t *testing.T) {
	var fired atomic.Int32
	n := NewLocalNotifier(func(domain.Notification) { fired.Add(1) })
	ctx := context.Background()

	notif := domain.Notification{ItemID: "item-1"}
	require.NoError(t, n.Register(ctx, notif, time.Now().Add(30*time.Millisecond)))
	require.NoError(t, n.Unregister(ctx, "item-1"))

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	assert.Empty(t, n.Pending())

	// Unregistering an absent id is fine.
	require.NoError(t, n.Unregister(ctx, "item-1"))
}

func TestLocalNotifier_ReplaceSupersedesOldTimer(t *testing.T) {
	type firing struct{ at time.Time }
	var (
		mu      sync.Mutex
		firings []firing
	)
	n := NewLocalNotifier(func(domain.Notification) {
		mu.Lock()
		firings = append(firings, firing{at: time.Now()})
		mu.Unlock()
	})
	ctx := context.Background()

	notif := domain.Notification{ItemID: "item-1"}
	require.NoError(t, n.Register(ctx, notif, time.Now().Add(20*time.Millisecond)))
	require.NoError(t, n.Register(ctx, notif, time.Now().Add(60*time.Millisecond)))

	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, firings, 1)
}
