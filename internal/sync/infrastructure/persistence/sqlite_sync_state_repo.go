package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/notesync/internal/sync/domain"
)

// SQLiteSyncStateRepository implements SyncStateRepository using SQLite.
// The mapping table and pending-deletion set are stored as JSON text so
// string keys and values round-trip exactly.
type SQLiteSyncStateRepository struct {
	db *sql.DB
}

// NewSQLiteSyncStateRepository creates a new SQLite sync state repository.
func NewSQLiteSyncStateRepository(db *sql.DB) *SQLiteSyncStateRepository {
	return &SQLiteSyncStateRepository{db: db}
}

// Save persists a sync state (create or update).
func (r *SQLiteSyncStateRepository) Save(ctx context.Context, state *domain.SyncState) error {
	mapping, err := json.Marshal(state.Mapping())
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	pending, err := json.Marshal(state.PendingDeletions())
	if err != nil {
		return fmt.Errorf("encode pending deletions: %w", err)
	}

	var lastSyncedAt *string
	if t := state.LastSyncedAt(); !t.IsZero() {
		formatted := t.Format(time.RFC3339)
		lastSyncedAt = &formatted
	}
	var lastError *string
	if text := state.LastError(); text != "" {
		lastError = &text
	}

	query := `
		INSERT INTO sync_state (
			source_id, event_mapping, pending_deletions,
			last_synced_at, sync_errors, last_error
		)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_id) DO UPDATE SET
			event_mapping = excluded.event_mapping,
			pending_deletions = excluded.pending_deletions,
			last_synced_at = excluded.last_synced_at,
			sync_errors = excluded.sync_errors,
			last_error = excluded.last_error
	`
	_, err = r.db.ExecContext(ctx, query,
		state.SourceID().String(),
		string(mapping),
		string(pending),
		lastSyncedAt,
		state.SyncErrors(),
		lastError,
	)
	return err
}

// FindBySource loads the sync state for a calendar source.
func (r *SQLiteSyncStateRepository) FindBySource(ctx context.Context, sourceID uuid.UUID) (*domain.SyncState, error) {
	query := `
		SELECT source_id, event_mapping, pending_deletions,
			   last_synced_at, sync_errors, last_error
		FROM sync_state
		WHERE source_id = ?
	`
	row := r.db.QueryRowContext(ctx, query, sourceID.String())

	var (
		idStr        string
		mappingJSON  string
		pendingJSON  string
		lastSyncedAt sql.NullString
		syncErrors   int
		lastError    sql.NullString
	)
	if err := row.Scan(&idStr, &mappingJSON, &pendingJSON, &lastSyncedAt, &syncErrors, &lastError); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return buildSyncState(idStr, mappingJSON, pendingJSON, lastSyncedAt.String, syncErrors, lastError.String)
}

// Delete removes the sync state for a source.
func (r *SQLiteSyncStateRepository) Delete(ctx context.Context, sourceID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_state WHERE source_id = ?`, sourceID.String())
	return err
}

func buildSyncState(idStr, mappingJSON, pendingJSON, lastSyncedAtStr string, syncErrors int, lastError string) (*domain.SyncState, error) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}

	var mapping map[string]string
	if err := json.Unmarshal([]byte(mappingJSON), &mapping); err != nil {
		return nil, fmt.Errorf("decode mapping: %w", err)
	}
	var pending []string
	if err := json.Unmarshal([]byte(pendingJSON), &pending); err != nil {
		return nil, fmt.Errorf("decode pending deletions: %w", err)
	}

	var lastSyncedAt time.Time
	if lastSyncedAtStr != "" {
		lastSyncedAt, err = time.Parse(time.RFC3339, lastSyncedAtStr)
		if err != nil {
			return nil, err
		}
	}

	return domain.RehydrateSyncState(id, mapping, pending, lastSyncedAt, syncErrors, lastError), nil
}
