// Package postgres opens the relational store used by the postgres
// diagnosis repository.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // registers the "postgres" driver
)

// Config holds connection parameters.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Schema creates the diagnoses table and its lookup index.
const Schema = `
CREATE TABLE IF NOT EXISTS diagnoses (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	disease     TEXT NOT NULL,
	probability DOUBLE PRECISION NOT NULL,
	description TEXT NOT NULL,
	precautions JSONB NOT NULL,
	symptoms    TEXT NOT NULL DEFAULT '',
	image_ref   TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS diagnoses_user_created_idx
	ON diagnoses (user_id, created_at DESC);
`

// Open returns a pooled handle. No connection is made until first use.
func Open(cfg Config) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}

	conn, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	conn.SetConnMaxLifetime(lifetime)
	conn.SetConnMaxIdleTime(lifetime)

	return conn, nil
}

// EnsureSchema applies Schema. Safe to call on every startup.
func EnsureSchema(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
