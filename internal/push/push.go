// Package push ingests remote-change notifications and routes them to the
// per-scope reconcilers. Delivery is at-least-once, possibly duplicated,
// possibly out of order; the reconcilers absorb all three.
package push

import (
	"context"
	"sync"

	"github.com/rezkam/pantry/internal/bus"
	"github.com/rezkam/pantry/internal/domain"
	"github.com/rezkam/pantry/internal/reconcile"
	"github.com/rezkam/pantry/internal/remote"
)

// Change is one decoded push notification: something changed remotely for
// a kind, optionally naming the affected record and its list.
type Change struct {
	Kind   remote.Kind  `json:"kind"`
	Op     reconcile.Op `json:"op"`
	ID     string       `json:"id,omitempty"`
	ListID string       `json:"list_id,omitempty"`
}

// Dispatcher fans pushes out to one reconciler per watched scope: one for
// the list collection, one per list for its items.
type Dispatcher struct {
	bus          *bus.Bus
	listRefetch  reconcile.Refetcher
	itemRefetch  func(listID string) reconcile.Refetcher
	reconcileOpt []reconcile.Option

	mu      sync.Mutex
	lists   *reconcile.Reconciler
	items   map[string]*reconcile.Reconciler
	stopped bool
}

// NewDispatcher creates a dispatcher. listRefetch reloads the list
// collection; itemRefetch builds the refetcher for one list's items.
func NewDispatcher(
	b *bus.Bus,
	listRefetch reconcile.Refetcher,
	itemRefetch func(listID string) reconcile.Refetcher,
	opts ...reconcile.Option,
) *Dispatcher {
	d := &Dispatcher{
		bus:          b,
		listRefetch:  listRefetch,
		itemRefetch:  itemRefetch,
		reconcileOpt: opts,
		items:        make(map[string]*reconcile.Reconciler),
	}
	d.lists = reconcile.New(listRefetch, opts...)
	// The list collection has no single owning view; it is always live.
	d.lists.SetActive(true)
	return d
}

// Dispatch routes one change. Unknown kinds are ignored: the remote store
// may grow record kinds this client version does not know.
func (d *Dispatcher) Dispatch(ctx context.Context, c Change) {
	switch c.Kind {
	case remote.KindList:
		if c.ID != "" {
			d.bus.Dispatch(domain.ListRemotelyUpdated{ListID: c.ID})
		}
		d.lists.Handle(c.Op)
	case remote.KindItem:
		if c.ListID == "" {
			return
		}
		d.scopeFor(c.ListID).Handle(c.Op)
	default:
	}
}

// SetActive marks the consumer of one list's items active or inactive.
// Refetches for inactive scopes are deferred until activation.
func (d *Dispatcher) SetActive(listID string, active bool) {
	d.scopeFor(listID).SetActive(active)
}

// StopScope stops watching one list's items, cancelling pending work.
func (d *Dispatcher) StopScope(listID string) {
	d.mu.Lock()
	r, ok := d.items[listID]
	delete(d.items, listID)
	d.mu.Unlock()

	if ok {
		r.Stop()
	}
}

// Stop cancels all reconcilers. Dispatch becomes a no-op.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.stopped = true
	items := d.items
	d.items = make(map[string]*reconcile.Reconciler)
	d.mu.Unlock()

	d.lists.Stop()
	for _, r := range items {
		r.Stop()
	}
}

func (d *Dispatcher) scopeFor(listID string) *reconcile.Reconciler {
	d.mu.Lock()
	defer d.mu.Unlock()

	if r, ok := d.items[listID]; ok {
		return r
	}

	r := reconcile.New(d.itemRefetch(listID), d.reconcileOpt...)
	if d.stopped {
		r.Stop()
	}
	d.items[listID] = r
	return r
}
