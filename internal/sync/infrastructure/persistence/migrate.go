package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS calendar_sources (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		provider TEXT NOT NULL,
		directory TEXT NOT NULL,
		calendar_id TEXT NOT NULL,
		sync_enabled INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sync_state (
		source_id TEXT PRIMARY KEY,
		event_mapping TEXT NOT NULL DEFAULT '{}',
		pending_deletions TEXT NOT NULL DEFAULT '[]',
		last_synced_at TEXT,
		sync_errors INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS credentials (
		source_id TEXT PRIMARY KEY,
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL DEFAULT '',
		token_type TEXT NOT NULL DEFAULT 'Bearer',
		expiry TEXT
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS calendar_sources (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		provider TEXT NOT NULL,
		directory TEXT NOT NULL,
		calendar_id TEXT NOT NULL,
		sync_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sync_state (
		source_id UUID PRIMARY KEY,
		event_mapping JSONB NOT NULL DEFAULT '{}',
		pending_deletions JSONB NOT NULL DEFAULT '[]',
		last_synced_at TIMESTAMPTZ,
		sync_errors INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS credentials (
		source_id UUID PRIMARY KEY,
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL DEFAULT '',
		token_type TEXT NOT NULL DEFAULT 'Bearer',
		expiry TIMESTAMPTZ
	)`,
}

// MigrateSQLite creates the schema on a SQLite database.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}

// MigratePostgres creates the schema on a PostgreSQL database.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply postgres schema: %w", err)
		}
	}
	return nil
}
