// Package bus provides the in-process publish/subscribe channel carrying
// domain events between repositories, the alert scheduler, the change
// reconciler, and read-model subscribers.
package bus

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/rezkam/pantry/internal/domain"
)

// DefaultSubscriberBuffer is the per-subscriber channel capacity.
const DefaultSubscriberBuffer = 64

// Bus fans out domain events to all current subscribers.
//
// Dispatch never blocks: events are appended to an unbounded internal queue
// and delivered by a single fan-out goroutine, which preserves dispatch
// order for every subscriber. A slow subscriber loses its oldest buffered
// events rather than stalling the queue. Late subscribers do not see events
// dispatched before they subscribed.
type Bus struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	pending []domain.Event
	wake    chan struct{}
	done    chan struct{}
	closed  bool
	bufSize int

	dispatched metric.Int64Counter
	dropped    metric.Int64Counter
}

// Option is a functional option for configuring the Bus.
type Option func(*Bus)

// WithSubscriberBuffer sets the per-subscriber channel capacity.
func WithSubscriberBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.bufSize = n
		}
	}
}

// New creates a bus and starts its fan-out goroutine.
func New(opts ...Option) *Bus {
	meter := otel.Meter("pantry/bus")
	dispatched, _ := meter.Int64Counter("bus.events.dispatched")
	dropped, _ := meter.Int64Counter("bus.events.dropped")

	b := &Bus{
		subs:       make(map[*Subscription]struct{}),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		bufSize:    DefaultSubscriberBuffer,
		dispatched: dispatched,
		dropped:    dropped,
	}

	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

// Dispatch enqueues the event for delivery to all current subscribers.
// It never blocks and is safe for concurrent use.
func (b *Bus) Dispatch(event domain.Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.pending = append(b.pending, event)
	b.mu.Unlock()

	b.dispatched.Add(context.Background(), 1)

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Subscribe registers a new subscriber and returns its event stream.
// The subscription only receives events dispatched after this call.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{
		bus: b,
		ch:  make(chan domain.Event, b.bufSize),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Close stops delivery and closes every subscription. Events still queued
// are discarded. Dispatch after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
	b.pending = nil
	b.mu.Unlock()

	close(b.done)
}

func (b *Bus) run() {
	for {
		select {
		case <-b.done:
			return
		case <-b.wake:
		}

		for {
			b.mu.Lock()
			if b.closed || len(b.pending) == 0 {
				b.mu.Unlock()
				break
			}
			event := b.pending[0]
			b.pending = b.pending[1:]
			for sub := range b.subs {
				b.deliverLocked(sub, event)
			}
			b.mu.Unlock()
		}
	}
}

// deliverLocked pushes one event to one subscriber without ever blocking.
// A full buffer evicts the oldest event first so the subscriber sees the
// most recent window in order. Caller holds b.mu.
func (b *Bus) deliverLocked(sub *Subscription, event domain.Event) {
	select {
	case sub.ch <- event:
		return
	default:
	}

	select {
	case <-sub.ch:
		b.dropped.Add(context.Background(), 1)
		slog.Warn("bus: slow subscriber, dropped oldest event")
	default:
	}

	select {
	case sub.ch <- event:
	default:
	}
}

// Subscription is one subscriber's view of the bus event stream.
type Subscription struct {
	bus  *Bus
	ch   chan domain.Event
	once sync.Once
}

// Events returns the channel of delivered events. It is closed when the
// subscription or the bus is closed.
func (s *Subscription) Events() <-chan domain.Event {
	return s.ch
}

// Close unregisters the subscription and closes its channel. Safe to call
// more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		if _, ok := s.bus.subs[s]; ok {
			delete(s.bus.subs, s)
			close(s.ch)
		}
	})
}
