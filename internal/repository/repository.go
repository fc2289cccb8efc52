// Package repository implements the entity repositories: each owns the
// authoritative in-memory cache for one entity kind, synchronizes it
// against the remote store, and broadcasts every state transition on the
// bus. All mutations are confirm-then-apply: the cache changes only after
// the remote store acknowledged the write.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rezkam/pantry/internal/bus"
	"github.com/rezkam/pantry/internal/domain"
	"github.com/rezkam/pantry/internal/remote"
)

// DefaultRemoteTimeout is applied to remote calls without a deadline.
const DefaultRemoteTimeout = 10 * time.Second

// Entity is a domain object with a stable identity.
type Entity interface {
	EntityID() string
}

// Scope selects a slice of an entity kind by reference, e.g. the items of
// one list. The zero value selects everything of the kind.
type Scope struct {
	Field string
	ID    string
}

// All selects every record of the kind.
var All = Scope{}

// ByList scopes to entities referencing the given list.
func ByList(listID string) Scope {
	return Scope{Field: remote.RefListID, ID: listID}
}

// ByItem scopes to entities referencing the given item.
func ByItem(itemID string) Scope {
	return Scope{Field: remote.RefItemID, ID: itemID}
}

// Codec converts between an entity and its remote record fields.
type Codec[E Entity] struct {
	Kind   remote.Kind
	Encode func(E) (map[string]any, error)
	Decode func(id string, fields map[string]any) (E, error)
}

// jsonCodec builds a Codec from the entity's JSON representation, which
// keeps record field names aligned with the struct tags.
func jsonCodec[E Entity](kind remote.Kind) Codec[E] {
	return Codec[E]{
		Kind: kind,
		Encode: func(e E) (map[string]any, error) {
			data, err := json.Marshal(e)
			if err != nil {
				return nil, fmt.Errorf("failed to encode %s: %w", kind, err)
			}
			var fields map[string]any
			if err := json.Unmarshal(data, &fields); err != nil {
				return nil, fmt.Errorf("failed to encode %s: %w", kind, err)
			}
			return fields, nil
		},
		Decode: func(id string, fields map[string]any) (E, error) {
			var e E
			data, err := json.Marshal(fields)
			if err != nil {
				return e, fmt.Errorf("failed to decode %s %s: %w", kind, id, err)
			}
			if err := json.Unmarshal(data, &e); err != nil {
				return e, fmt.Errorf("failed to decode %s %s: %w", kind, id, err)
			}
			return e, nil
		},
	}
}

// Events maps repository state transitions to the concrete bus events of
// the entity kind.
type Events[E Entity] struct {
	Fetched func(scope Scope, entities []E) domain.Event
	Added   func(E) domain.Event
	Updated func(E) domain.Event
	Removed func([]E) domain.Event
}

// Repository is the generic confirm-then-apply repository core.
type Repository[E Entity] struct {
	store   remote.Store
	bus     *bus.Bus
	codec   Codec[E]
	events  Events[E]
	ref     func(E) string // reference field value, "" for unscoped kinds
	timeout time.Duration

	mu    sync.RWMutex
	cache map[string]E

	queue *keyedQueue
	ops   metric.Int64Counter
}

func newRepository[E Entity](
	store remote.Store,
	b *bus.Bus,
	codec Codec[E],
	events Events[E],
	ref func(E) string,
	timeout time.Duration,
) *Repository[E] {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}

	meter := otel.Meter("pantry/repository")
	ops, _ := meter.Int64Counter("repository.operations")

	return &Repository[E]{
		store:   store,
		bus:     b,
		codec:   codec,
		events:  events,
		ref:     ref,
		timeout: timeout,
		cache:   make(map[string]E),
		queue:   newKeyedQueue(),
		ops:     ops,
	}
}

func (r *Repository[E]) count(ctx context.Context, op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.ops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(r.codec.Kind)),
		attribute.String("op", op),
		attribute.String("status", status),
	))
}

// FetchAll queries the remote store for the scope, replaces that slice of
// the cache with the result, and emits the Fetched event.
func (r *Repository[E]) FetchAll(ctx context.Context, scope Scope) ([]E, error) {
	ctx, cancel := remote.WithDeadline(ctx, r.timeout)
	defer cancel()

	records, err := r.store.Query(ctx, r.codec.Kind, scope.Field, scope.ID)
	if err != nil {
		err = remote.Classify(err)
		r.count(ctx, "fetch", err)
		r.bus.Dispatch(domain.ErrorOccurred{Err: err})
		return nil, err
	}

	entities := make([]E, 0, len(records))
	for _, rec := range records {
		e, err := r.codec.Decode(rec.ID, rec.Fields)
		if err != nil {
			slog.WarnContext(ctx, "repository: skipping undecodable record",
				"kind", r.codec.Kind, "id", rec.ID, "error", err)
			continue
		}
		entities = append(entities, e)
	}

	r.mu.Lock()
	for id, e := range r.cache {
		if r.inScope(e, scope) {
			delete(r.cache, id)
		}
	}
	for _, e := range entities {
		r.cache[e.EntityID()] = e
	}
	r.mu.Unlock()

	r.count(ctx, "fetch", nil)
	r.bus.Dispatch(r.events.Fetched(scope, entities))
	return entities, nil
}

// Add validates the entity, creates it remotely, and applies it to the
// cache only after confirmation.
func (r *Repository[E]) Add(ctx context.Context, entity E) error {
	id := entity.EntityID()
	if id == "" {
		return domain.ErrEmptyID
	}

	var opErr error
	r.queue.run(id, func() {
		opErr = r.confirmAndApply(ctx, "add", entity, r.events.Added, func(ctx context.Context, rec remote.Record) (remote.Record, error) {
			return r.store.Create(ctx, rec)
		})
	})
	return opErr
}

// Update validates the entity, overwrites it remotely, and applies it to
// the cache only after confirmation. Concurrent updates for the same id
// are queued, never interleaved.
func (r *Repository[E]) Update(ctx context.Context, entity E) error {
	return r.updateWith(ctx, entity, r.events.Updated)
}

// UpdateBatch updates each entity in order. A failing entity leaves its
// cache entry untouched and does not stop the rest of the batch.
func (r *Repository[E]) UpdateBatch(ctx context.Context, entities []E) error {
	var firstErr error
	for _, e := range entities {
		if err := r.Update(ctx, e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repository[E]) updateWith(ctx context.Context, entity E, event func(E) domain.Event) error {
	id := entity.EntityID()
	if id == "" {
		return domain.ErrEmptyID
	}

	var opErr error
	r.queue.run(id, func() {
		opErr = r.confirmAndApply(ctx, "update", entity, event, func(ctx context.Context, rec remote.Record) (remote.Record, error) {
			return r.store.Update(ctx, rec)
		})
	})
	return opErr
}

func (r *Repository[E]) confirmAndApply(
	ctx context.Context,
	op string,
	entity E,
	event func(E) domain.Event,
	call func(context.Context, remote.Record) (remote.Record, error),
) error {
	fields, err := r.codec.Encode(entity)
	if err != nil {
		return err
	}

	ctx, cancel := remote.WithDeadline(ctx, r.timeout)
	defer cancel()

	confirmed, err := call(ctx, remote.Record{Kind: r.codec.Kind, ID: entity.EntityID(), Fields: fields})
	if err != nil {
		err = remote.Classify(err)
		r.count(ctx, op, err)
		r.bus.Dispatch(domain.ErrorOccurred{Err: err})
		return err
	}

	applied, err := r.codec.Decode(confirmed.ID, confirmed.Fields)
	if err != nil {
		// The write landed; keep the local value rather than dropping it.
		slog.WarnContext(ctx, "repository: confirmed record did not decode, caching local value",
			"kind", r.codec.Kind, "id", entity.EntityID(), "error", err)
		applied = entity
	}

	r.mu.Lock()
	r.cache[applied.EntityID()] = applied
	r.mu.Unlock()

	r.count(ctx, op, nil)
	r.bus.Dispatch(event(applied))
	return nil
}

// Remove deletes the entity remotely and drops it from the cache only
// after confirmation.
func (r *Repository[E]) Remove(ctx context.Context, entity E) error {
	return r.RemoveBatch(ctx, []E{entity})
}

// RemoveBatch deletes the entities remotely, drops every confirmed one from
// the cache, and emits a single Removed event for the confirmed set.
// Failed deletions leave their cache entries untouched and surface as
// ErrorOccurred; a target already gone remotely counts as removed.
func (r *Repository[E]) RemoveBatch(ctx context.Context, entities []E) error {
	var (
		removed  []E
		firstErr error
	)

	for _, entity := range entities {
		id := entity.EntityID()
		if id == "" {
			if firstErr == nil {
				firstErr = domain.ErrEmptyID
			}
			continue
		}

		r.queue.run(id, func() {
			callCtx, cancel := remote.WithDeadline(ctx, r.timeout)
			defer cancel()

			err := r.store.Delete(callCtx, r.codec.Kind, id)
			if err != nil && !errors.Is(err, remote.ErrNotFound) {
				err = remote.Classify(err)
				r.count(callCtx, "remove", err)
				r.bus.Dispatch(domain.ErrorOccurred{Err: err})
				if firstErr == nil {
					firstErr = err
				}
				return
			}

			r.mu.Lock()
			delete(r.cache, id)
			r.mu.Unlock()

			r.count(callCtx, "remove", nil)
			removed = append(removed, entity)
		})
	}

	if len(removed) > 0 {
		r.bus.Dispatch(r.events.Removed(removed))
	}
	return firstErr
}

// Get returns the cached entity for the id, if present.
func (r *Repository[E]) Get(id string) (E, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.cache[id]
	return e, ok
}

// Cached returns an immutable snapshot of the cached entities in scope.
func (r *Repository[E]) Cached(scope Scope) []E {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []E
	for _, e := range r.cache {
		if r.inScope(e, scope) {
			out = append(out, e)
		}
	}
	return out
}

func (r *Repository[E]) inScope(e E, scope Scope) bool {
	if scope.Field == "" {
		return true
	}
	if r.ref == nil {
		return false
	}
	return r.ref(e) == scope.ID
}
