// Package pgstore provides a PostgreSQL-backed remote.Store for shared
// deployments. Records are stored as JSONB documents keyed by (kind, id);
// migrations are embedded and applied with goose on startup.
package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/pressly/goose/v3"

	"github.com/rezkam/pantry/internal/remote"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Config holds PostgreSQL connection configuration.
type Config struct {
	DSN             string        // PostgreSQL connection string
	MaxOpenConns    int           // Maximum open connections (default: 25)
	MaxIdleConns    int           // Maximum idle connections (default: 5)
	ConnMaxLifetime time.Duration // Connection max lifetime (default: 5min)
	CallTimeout     time.Duration // Default per-call deadline (default: 10s)
}

// Store is a PostgreSQL implementation of remote.Store.
type Store struct {
	db      *sql.DB
	timeout time.Duration
}

// NewStore opens the database, configures the pool, and runs migrations.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	maxLifetime := cfg.ConnMaxLifetime
	if maxLifetime <= 0 {
		maxLifetime = 5 * time.Minute
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db, timeout: timeout}, nil
}

func runMigrations(db *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	goose.SetBaseFS(embedMigrations)

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// Close releases the connection pool.
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
		`INSERT INTO records (kind, id, fields) VALUES ($1, $2, $3)`,
		string(rec.Kind), rec.ID, fields)
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
		`SELECT fields FROM records WHERE kind = $1 AND id = $2`,
		string(kind), id)

	var raw []byte
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
		`UPDATE records SET fields = $1 WHERE kind = $2 AND id = $3`,
		fields, string(rec.Kind), rec.ID)
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
		`DELETE FROM records WHERE kind = $1 AND id = $2`,
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
// using a JSONB field lookup.
func (s *Store) Query(ctx context.Context, kind remote.Kind, refField, refID string) ([]remote.Record, error) {
	ctx, cancel := remote.WithDeadline(ctx, s.timeout)
	defer cancel()

	var (
		rows *sql.Rows
		err  error
	)
	if refField == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, fields FROM records WHERE kind = $1`, string(kind))
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, fields FROM records WHERE kind = $1 AND fields->>$2 = $3`,
			string(kind), refField, refID)
	}
	if err != nil {
		return nil, remote.Classify(fmt.Errorf("failed to query records: %w", err))
	}
	defer rows.Close()

	var out []remote.Record
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
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

func decodeRecord(kind remote.Kind, id string, raw []byte) (remote.Record, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return remote.Record{}, fmt.Errorf("failed to decode fields for %s/%s: %w", kind, id, err)
	}
	return remote.Record{Kind: kind, ID: id, Fields: fields}, nil
}
