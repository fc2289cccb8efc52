package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rezkam/pantry/internal/bus"
	"github.com/rezkam/pantry/internal/domain"
)

// Scheduler keeps the installed platform alerts consistent with item
// state. It reacts to bus events: items gaining an alert get a trigger
// installed, items losing one (or being removed) get it cancelled, and a
// removed list cancels every trigger of its items.
//
// Scheduling failures are logged and swallowed; a missed alert is
// recoverable, a wedged scheduler is not.
type Scheduler struct {
	notifier Notifier
	records  *Records
	cfg      Config
	now      func() time.Time

	mu        sync.Mutex
	gen       uint64
	installed map[string]installedTrigger
}

// installedTrigger records one installed alert. The generation token ties
// the map entry to the notifier registration that created it, so a Cancel
// racing an in-flight registration can be detected afterwards.
type installedTrigger struct {
	listID string
	at     time.Time
	gen    uint64
}

// NewScheduler creates a scheduler. records may be nil when persistence of
// notification records is not wanted (tests, ephemeral runs).
func NewScheduler(notifier Notifier, records *Records, cfg Config) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Scheduler{
		notifier:  notifier,
		records:   records,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		installed: make(map[string]installedTrigger),
	}
}

// ScheduleOrReplace cancels any existing trigger for the item and installs
// a freshly computed one if it is valid. Identical repeated calls leave
// exactly one active trigger.
func (s *Scheduler) ScheduleOrReplace(ctx context.Context, item domain.Item) {
	at, ok := TriggerTime(item.Expiration, item.Alert, s.now(), s.cfg)
	if !ok {
		s.Cancel(ctx, item.ID)
		return
	}

	s.mu.Lock()
	prev, had := s.installed[item.ID]
	if had && prev.listID == item.ListID && prev.at.Equal(at) {
		// Same trigger already installed.
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	s.installed[item.ID] = installedTrigger{listID: item.ListID, at: at, gen: gen}
	s.mu.Unlock()

	n := domain.Notification{ItemID: item.ID, ListID: item.ListID, Alert: item.Alert}

	if err := s.notifier.Register(ctx, n, at); err != nil {
		slog.WarnContext(ctx, "scheduler: failed to register alert",
			"item_id", item.ID, "at", at, "error", err)
		s.mu.Lock()
		if cur, ok := s.installed[item.ID]; ok && cur.gen == gen {
			delete(s.installed, item.ID)
		}
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	_, still := s.installed[item.ID]
	s.mu.Unlock()
	if !still {
		// Cancelled while the registration was in flight; its Unregister
		// found nothing, so take the fresh platform alert down here.
		if err := s.notifier.Unregister(ctx, item.ID); err != nil {
			slog.WarnContext(ctx, "scheduler: failed to unregister superseded alert",
				"item_id", item.ID, "error", err)
		}
		return
	}

	if s.records != nil {
		if err := s.records.Save(ctx, n); err != nil {
			slog.WarnContext(ctx, "scheduler: failed to persist notification record",
				"item_id", item.ID, "error", err)
		}
	}

	slog.DebugContext(ctx, "scheduler: alert installed", "item_id", item.ID, "at", at)
}

// Cancel removes any installed trigger for the item id unconditionally.
func (s *Scheduler) Cancel(ctx context.Context, itemID string) {
	s.mu.Lock()
	_, had := s.installed[itemID]
	delete(s.installed, itemID)
	s.mu.Unlock()

	if err := s.notifier.Unregister(ctx, itemID); err != nil {
		slog.WarnContext(ctx, "scheduler: failed to unregister alert",
			"item_id", itemID, "error", err)
	}

	if s.records != nil && had {
		if err := s.records.DeleteByItem(ctx, itemID); err != nil {
			slog.WarnContext(ctx, "scheduler: failed to delete notification record",
				"item_id", itemID, "error", err)
		}
	}
}

// CancelAll cancels the triggers of every item known to belong to the
// list and drops the list's persisted notification records.
func (s *Scheduler) CancelAll(ctx context.Context, listID string) {
	s.mu.Lock()
	var itemIDs []string
	for id, trig := range s.installed {
		if trig.listID == listID {
			itemIDs = append(itemIDs, id)
		}
	}
	for _, id := range itemIDs {
		delete(s.installed, id)
	}
	s.mu.Unlock()

	for _, id := range itemIDs {
		if err := s.notifier.Unregister(ctx, id); err != nil {
			slog.WarnContext(ctx, "scheduler: failed to unregister alert",
				"item_id", id, "error", err)
		}
	}

	if s.records != nil {
		if err := s.records.DeleteByList(ctx, listID); err != nil {
			slog.WarnContext(ctx, "scheduler: failed to delete notification records",
				"list_id", listID, "error", err)
		}
	}
}

// Installed reports whether a trigger is currently installed for the item.
func (s *Scheduler) Installed(itemID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trig, ok := s.installed[itemID]
	return trig.at, ok
}

// Run consumes the subscription until ctx is cancelled or the bus closes,
// keeping triggers in sync with item events.
func (s *Scheduler) Run(ctx context.Context, sub *bus.Subscription) {
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			s.handle(ctx, event)
		}
	}
}

func (s *Scheduler) handle(ctx context.Context, event domain.Event) {
	switch e := event.(type) {
	case domain.ItemAdded:
		s.apply(ctx, e.Item)
	case domain.ItemUpdated:
		s.apply(ctx, e.Item)
	case domain.ItemMoved:
		s.apply(ctx, e.Item)
	case domain.ItemsFetched:
		for _, item := range e.Items {
			s.apply(ctx, item)
		}
	case domain.ItemsRemoved:
		for _, item := range e.Items {
			s.Cancel(ctx, item.ID)
		}
	case domain.ListsRemoved:
		for _, list := range e.Lists {
			s.CancelAll(ctx, list.ID)
		}
	default:
	}
}

func (s *Scheduler) apply(ctx context.Context, item domain.Item) {
	if item.Alert.IsNone() {
		s.Cancel(ctx, item.ID)
		return
	}
	s.ScheduleOrReplace(ctx, item)
}
