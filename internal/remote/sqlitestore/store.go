// Package sqlitestore provides a SQLite-backed remote.Store. It is the
// default backend for single-machine deployments and local development;
// records are stored as JSON documents keyed by (kind, id).
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/rezkam/pantry/internal/remote"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	kind   TEXT NOT NULL,
	id     TEXT NOT NULL,
	fields TEXT NOT NULL,
	PRIMARY KEY (kind, id)
);
`

// DefaultTimeout is applied to calls arriving without a deadline.
const DefaultTimeout = 10 * time.Second

// Store is a SQLite implementation of remote.Store.
type Store struct {
	db      *sql.DB
	timeout time.Duration
}

// NewStore opens (or creates) the database at path and ensures the schema.
func NewStore(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent repository mutations.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, timeout: DefaultTimeout}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create stores a new record.
func (s *Store) Create(ctx context.Context, rec remote.Record) (remote.Record, error) {
	ctx, cancel := remote.WithDeadline(ctx, s.timeout)
	defer cancel()

	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return remote.Record{}, fmt.Errorf("failed to encode fields: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (kind, id, fields) VALUES (?, ?, ?)`,
		string(rec.Kind), rec.ID, string(fields))
	if err != nil {
		return remote.Record{}, remote.Classify(fmt.Errorf("failed to insert record: %w", err))
	}

	return rec, nil
}

// Read returns the record with the given kind and id.
func (s *Store) Read(ctx context.Context, kind remote.Kind, id string) (remote.Record, error) {
	ctx, cancel := remote.WithDeadline(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx,
		`SELECT fields FROM records WHERE kind = ? AND id = ?`,
		string(kind), id)

	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return remote.Record{}, remote.ErrNotFound
		}
		return remote.Record{}, remote.Classify(fmt.Errorf("failed to read record: %w", err))
	}

	return decodeRecord(kind, id, raw)
}

// Update overwrites an existing record.
func (s *Store) Update(ctx context.Context, rec remote.Record) (remote.Record, error) {
	ctx, cancel := remote.WithDeadline(ctx, s.timeout)
	defer cancel()

	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return remote.Record{}, fmt.Errorf("failed to encode fields: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET fields = ? WHERE kind = ? AND id = ?`,
		string(fields), string(rec.Kind), rec.ID)
	if err != nil {
		return remote.Record{}, remote.Classify(fmt.Errorf("failed to update record: %w", err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return remote.Record{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return remote.Record{}, remote.ErrNotFound
	}

	return rec, nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, kind remote.Kind, id string) error {
	ctx, cancel := remote.WithDeadline(ctx, s.timeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE kind = ? AND id = ?`,
		string(kind), id)
	if err != nil {
		return remote.Classify(fmt.Errorf("failed to delete record: %w", err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return remote.ErrNotFound
	}

	return nil
}

// Query returns records of the kind matching the reference predicate,
// using json_extract over the stored document.
func (s *Store) Query(ctx context.Context, kind remote.Kind, refField, refID string) ([]remote.Record, error) {
	ctx, cancel := remote.WithDeadline(ctx, s.timeout)
	defer cancel()

	var (
		rows *sql.Rows
		err  error
	)
	if refField == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, fields FROM records WHERE kind = ?`, string(kind))
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, fields FROM records WHERE kind = ? AND json_extract(fields, '$.' || ?) = ?`,
			string(kind), refField, refID)
	}
	if err != nil {
		return nil, remote.Classify(fmt.Errorf("failed to query records: %w", err))
	}
	defer rows.Close()

	var out []remote.Record
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec, err := decodeRecord(kind, id, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, remote.Classify(err)
	}
	return out, nil
}

func decodeRecord(kind remote.Kind, id, raw string) (remote.Record, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return remote.Record{}, fmt.Errorf("failed to decode fields for %s/%s: %w", kind, id, err)
	}
	return remote.Record{Kind: kind, ID: id, Fields: fields}, nil
}
