// Package remote defines the abstract record store the repositories
// synchronize against. Backends implement Store; repositories treat it as
// an eventually-consistent, key-addressable record store and never retry
// failures themselves.
package remote

import (
	"context"
	"errors"
	"time"
)

// Kind identifies a record type in the store.
type Kind string

// Record kinds mirroring the domain entity kinds.
const (
	KindList         Kind = "list"
	KindItem         Kind = "item"
	KindPhoto        Kind = "photo"
	KindNotification Kind = "notification"
)

// Reference field names used by Query.
const (
	RefListID = "list_id"
	RefItemID = "item_id"
)

// Record is one stored record: an opaque id plus a flat field set.
// Field values survive a JSON round trip (strings, numbers, booleans,
// nested JSON), so backends may persist them as a single document.
type Record struct {
	Kind   Kind
	ID     string
	Fields map[string]any
}

// Store is the remote record store contract.
//
// All calls honor the context deadline; backends surface an exceeded
// deadline as ErrTimeout rather than hanging the caller.
type Store interface {
	// Create stores a new record and returns it as confirmed by the store.
	Create(ctx context.Context, rec Record) (Record, error)

	// Read returns the record with the given kind and id.
	// Returns ErrNotFound if it does not exist.
	Read(ctx context.Context, kind Kind, id string) (Record, error)

	// Update overwrites an existing record and returns the stored state.
	// Returns ErrNotFound if the target no longer exists.
	Update(ctx context.Context, rec Record) (Record, error)

	// Delete removes the record. Deleting an absent record is an error
	// (ErrNotFound) so callers can drop stale local state.
	Delete(ctx context.Context, kind Kind, id string) error

	// Query returns all records of the kind whose refField equals refID.
	// An empty refField returns every record of the kind.
	Query(ctx context.Context, kind Kind, refField, refID string) ([]Record, error)
}

// Error kinds a Store may return. Anything else is a generic remote error.
var (
	// ErrNotFound indicates the target record does not exist remotely.
	ErrNotFound = errors.New("record not found")

	// ErrQuotaExceeded indicates the store rejected the write for quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrTimeout indicates the call exceeded its deadline.
	ErrTimeout = errors.New("network timeout")
)

// Classify maps low-level errors onto the store error kinds. Context
// deadline errors become ErrTimeout; everything else passes through.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}
	return err
}

// WithDeadline ensures ctx carries a deadline, applying def when absent.
func WithDeadline(ctx context.Context, def time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, def)
}
