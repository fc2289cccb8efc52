// Package reconcile re-fetches authoritative state after remote push
// notifications. Pushes arrive at-least-once and out of order; each
// watched scope runs a small debouncing state machine rather than a queue.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Op is the kind of remote change a push reports.
type Op string

// Op values.
const (
	OpAdded   Op = "added"
	OpUpdated Op = "updated"
	OpRemoved Op = "removed"
)

// DefaultGraceDelay is the wait before refetching after an addition push.
// New records may not be readable immediately because of remote
// replication lag; deletions and overwrites need no such wait.
const DefaultGraceDelay = 3 * time.Second

// Refetcher reloads the watched scope from the remote store.
type Refetcher func(ctx context.Context) error

// Reconciler debounces refetches for one watched scope (typically one
// list's item collection).
//
// State machine: Idle -> PendingRefetch on an addition push (grace timer);
// further addition pushes while pending are coalesced. Update/removal
// pushes refetch immediately. While the consumer is inactive, refetches
// are held as a single deferred flag and run once on activation.
type Reconciler struct {
	refetch Refetcher
	grace   time.Duration
	timeout time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	pending  bool // PendingRefetch: a grace timer is armed
	active   bool
	deferred bool
	stopped  bool
}

// Option is a functional option for configuring the Reconciler.
type Option func(*Reconciler)

// WithGraceDelay sets the wait before refetching after an addition push.
func WithGraceDelay(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.grace = d
		}
	}
}

// WithRefetchTimeout bounds each refetch call.
func WithRefetchTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// New creates a reconciler for one scope. It starts inactive; call
// SetActive(true) once the consumer is ready to observe refetch results.
func New(refetch Refetcher, opts ...Option) *Reconciler {
	r := &Reconciler{
		refetch: refetch,
		grace:   DefaultGraceDelay,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle processes one push for this scope. Duplicates coalesce;
// out-of-order arrival is tolerated because each op kind is treated
// independently.
func (r *Reconciler) Handle(op Op) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}

	switch op {
	case OpAdded:
		if r.pending {
			// Already scheduled; coalesce.
			r.mu.Unlock()
			return
		}
		r.pending = true
		r.timer = time.AfterFunc(r.grace, r.graceElapsed)
		r.mu.Unlock()
	default:
		// Removals and overwrites are observable immediately.
		r.mu.Unlock()
		r.runOrDefer()
	}
}

func (r *Reconciler) graceElapsed() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.pending = false
	r.timer = nil
	r.mu.Unlock()

	r.runOrDefer()
}

func (r *Reconciler) runOrDefer() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	if !r.active {
		// Held as a single flag; N deferred refetches collapse to one.
		r.deferred = true
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.run()
}

func (r *Reconciler) run() {
	// runOrDefer released the lock before calling here; Stop may have won
	// the race in between, so the decision to refetch is re-taken.
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.refetch(ctx); err != nil {
		// Best effort: the next push or a manual refresh recovers.
		slog.WarnContext(ctx, "reconciler: refetch failed", "error", err)
	}
}

// SetActive marks the consuming view active or inactive. Activation runs
// a deferred refetch exactly once.
func (r *Reconciler) SetActive(active bool) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.active = active
	runDeferred := active && r.deferred
	if runDeferred {
		r.deferred = false
	}
	r.mu.Unlock()

	if runDeferred {
		r.run()
	}
}

// Stop cancels any pending grace timer and clears the deferred flag.
// No new refetch starts after Stop returns; a refetch already in flight
// runs to completion.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopped = true
	r.deferred = false
	r.pending = false
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// PendingRefetch reports whether a grace timer is currently armed.
func (r *Reconciler) PendingRefetch() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

// Deferred reports whether a refetch is held for activation.
func (r *Reconciler) Deferred() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deferred
}
