// Package db stores analysis history in PostgreSQL. The store is optional: the service
// runs without it and the history endpoints report not found.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS analyses (
	id           UUID PRIMARY KEY,
	profile      TEXT NOT NULL,
	model        TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	attempts     INTEGER NOT NULL DEFAULT 0,
	result       JSONB,
	violations   JSONB,
	raw_response TEXT NOT NULL DEFAULT '',
	report       TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS analyses_profile_created_idx ON analyses (profile, created_at DESC);
CREATE INDEX IF NOT EXISTS analyses_status_idx ON analyses (status);
`

// EnsureSchema creates the analyses table and its indexes when missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
