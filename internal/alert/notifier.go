package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rezkam/pantry/internal/domain"
)

// Notifier is the platform boundary for scheduled-alert registrations,
// keyed by item id. On-device builds register with the OS notification
// center; the standalone runtime uses LocalNotifier.
type Notifier interface {
	// Register installs (or replaces) the alert for the item to fire at
	// the given instant.
	Register(ctx context.Context, n domain.Notification, at time.Time) error

	// Unregister removes any installed alert for the item id. Removing an
	// absent registration is not an error.
	Unregister(ctx context.Context, itemID string) error
}

// FireFunc is invoked by LocalNotifier when an alert fires.
type FireFunc func(n domain.Notification)

// LocalNotifier delivers alerts from in-process timers. Each registration
// carries a generation token; cancellation bumps the generation so a timer
// that already fired into the goroutine scheduler cannot deliver after
// Unregister returned.
type LocalNotifier struct {
	mu     sync.Mutex
	timers map[string]*localTimer
	fire   FireFunc
}

type localTimer struct {
	timer      *time.Timer
	generation uint64
}

// NewLocalNotifier creates a notifier delivering through fire. A nil fire
// logs each alert instead.
func NewLocalNotifier(fire FireFunc) *LocalNotifier {
	if fire == nil {
		fire = func(n domain.Notification) {
			slog.Info("alert fired", "item_id", n.ItemID, "list_id", n.ListID)
		}
	}
	return &LocalNotifier{
		timers: make(map[string]*localTimer),
		fire:   fire,
	}
}

// Register installs a timer for the item, replacing any existing one.
func (l *LocalNotifier) Register(ctx context.Context, n domain.Notification, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing := l.timers[n.ItemID]
	generation := uint64(1)
	if existing != nil {
		existing.timer.Stop()
		generation = existing.generation + 1
	}

	lt := &localTimer{generation: generation}
	lt.timer = time.AfterFunc(time.Until(at), func() {
		l.mu.Lock()
		current, ok := l.timers[n.ItemID]
		if !ok || current.generation != generation {
			// Cancelled or replaced between firing and acquiring the lock.
			l.mu.Unlock()
			return
		}
		delete(l.timers, n.ItemID)
		l.mu.Unlock()

		l.fire(n)
	})
	l.timers[n.ItemID] = lt
	return nil
}

// Unregister cancels the timer for the item id, if any. After Unregister
// returns, the alert will not fire.
func (l *LocalNotifier) Unregister(ctx context.Context, itemID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lt, ok := l.timers[itemID]; ok {
		lt.timer.Stop()
		delete(l.timers, itemID)
	}
	return nil
}

// Pending returns the item ids with an installed timer.
func (l *LocalNotifier) Pending() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make([]string, 0, len(l.timers))
	for id := range l.timers {
		ids = append(ids, id)
	}
	return ids
}
