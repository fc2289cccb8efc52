// Package memory provides an in-memory remote.Store. It backs the
// standalone configuration and unit tests; semantics match the SQL
// backends, including distinct not-found errors.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/rezkam/pantry/internal/remote"
)

// Store is an in-memory implementation of remote.Store.
type Store struct {
	mu      sync.RWMutex
	records map[remote.Kind]map[string]remote.Record
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{records: make(map[remote.Kind]map[string]remote.Record)}
}

func cloneRecord(rec remote.Record) remote.Record {
	rec.Fields = maps.Clone(rec.Fields)
	return rec
}

// Create stores a new record. Creating an existing id is an error.
func (s *Store) Create(ctx context.Context, rec remote.Record) (remote.Record, error) {
	if err := ctx.Err(); err != nil {
		return remote.Record{}, remote.Classify(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.records[rec.Kind]
	if byID == nil {
		byID = make(map[string]remote.Record)
		s.records[rec.Kind] = byID
	}
	if _, exists := byID[rec.ID]; exists {
		return remote.Record{}, fmt.Errorf("record %s/%s already exists", rec.Kind, rec.ID)
	}

	byID[rec.ID] = cloneRecord(rec)
	return cloneRecord(rec), nil
}

// Read returns the record or remote.ErrNotFound.
func (s *Store) Read(ctx context.Context, kind remote.Kind, id string) (remote.Record, error) {
	if err := ctx.Err(); err != nil {
		return remote.Record{}, remote.Classify(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[kind][id]
	if !ok {
		return remote.Record{}, remote.ErrNotFound
	}
	return cloneRecord(rec), nil
}

// Update overwrites an existing record or returns remote.ErrNotFound.
func (s *Store) Update(ctx context.Context, rec remote.Record) (remote.Record, error) {
	if err := ctx.Err(); err != nil {
		return remote.Record{}, remote.Classify(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.records[rec.Kind]
	if _, ok := byID[rec.ID]; !ok {
		return remote.Record{}, remote.ErrNotFound
	}

	byID[rec.ID] = cloneRecord(rec)
	return cloneRecord(rec), nil
}

// Delete removes the record or returns remote.ErrNotFound.
func (s *Store) Delete(ctx context.Context, kind remote.Kind, id string) error {
	if err := ctx.Err(); err != nil {
		return remote.Classify(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.records[kind]
	if _, ok := byID[id]; !ok {
		return remote.ErrNotFound
	}
	delete(byID, id)
	return nil
}

// Query returns records of the kind matching the reference predicate.
func (s *Store) Query(ctx context.Context, kind remote.Kind, refField, refID string) ([]remote.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, remote.Classify(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []remote.Record
	for _, rec := range s.records[kind] {
		if refField != "" {
			v, ok := rec.Fields[refField].(string)
			if !ok || v != refID {
				continue
			}
		}
		out = append(out, cloneRecord(rec))
	}
	return out, nil
}
