package config

import (
	"fmt"
	"time"

	"github.com/rezkam/pantry/internal/env"
)

// Config holds the application configuration.
type Config struct {
	// Remote store
	RemoteBackend string        `env:"PANTRY_REMOTE_BACKEND" default:"sqlite"` // memory, sqlite, postgres
	SQLitePath    string        `env:"PANTRY_SQLITE_PATH" default:"./pantry.db"`
	PostgresURL   string        `env:"PANTRY_POSTGRES_URL"`
	RemoteTimeout time.Duration `env:"PANTRY_REMOTE_TIMEOUT" default:"10s"`

	// Photo payload storage
	BlobBackend string `env:"PANTRY_BLOB_BACKEND" default:"fs"` // fs, gcs
	BlobDir     string `env:"PANTRY_BLOB_DIR" default:"./pantry-blobs"`
	GCSBucket   string `env:"PANTRY_GCS_BUCKET"`

	// Push ingress
	PushAddr string `env:"PANTRY_PUSH_ADDR" default:":8085"`

	// Reconciliation: wait before refetching after an addition push, to
	// tolerate remote replication lag.
	PushGraceDelay time.Duration `env:"PANTRY_PUSH_GRACE_DELAY" default:"3s"`

	// Alerts fire at this hour of day in this zone.
	AlertHour int    `env:"PANTRY_ALERT_HOUR" default:"9"`
	AlertZone string `env:"PANTRY_ALERT_ZONE" default:"UTC"`

	// Observability
	OTelEnabled bool `env:"PANTRY_OTEL_ENABLED" default:"false"`
}

// Load parses environment variables into a Config struct and validates
// backend-dependent settings.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.RemoteBackend {
	case "memory":
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("PANTRY_SQLITE_PATH is required when PANTRY_REMOTE_BACKEND is 'sqlite'")
		}
	case "postgres":
		if c.PostgresURL == "" {
			return fmt.Errorf("PANTRY_POSTGRES_URL is required when PANTRY_REMOTE_BACKEND is 'postgres'")
		}
	default:
		return fmt.Errorf("unknown PANTRY_REMOTE_BACKEND: %s", c.RemoteBackend)
	}

	switch c.BlobBackend {
	case "fs":
		if c.BlobDir == "" {
			return fmt.Errorf("PANTRY_BLOB_DIR is required when PANTRY_BLOB_BACKEND is 'fs'")
		}
	case "gcs":
		if c.GCSBucket == "" {
			return fmt.Errorf("PANTRY_GCS_BUCKET is required when PANTRY_BLOB_BACKEND is 'gcs'")
		}
	default:
		return fmt.Errorf("unknown PANTRY_BLOB_BACKEND: %s", c.BlobBackend)
	}

	if c.AlertHour < 0 || c.AlertHour > 23 {
		return fmt.Errorf("PANTRY_ALERT_HOUR must be between 0 and 23, got %d", c.AlertHour)
	}
	if _, err := time.LoadLocation(c.AlertZone); err != nil {
		return fmt.Errorf("invalid PANTRY_ALERT_ZONE: %w", err)
	}

	return nil
}

// AlertLocation returns the parsed alert time zone. Call after Load, which
// validated it.
func (c *Config) AlertLocation() *time.Location {
	loc, err := time.LoadLocation(c.AlertZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
