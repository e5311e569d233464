package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/notesync/internal/sync/domain"
)

// PostgresSyncStateRepository implements SyncStateRepository using PostgreSQL.
type PostgresSyncStateRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSyncStateRepository creates a new PostgreSQL sync state repository.
func NewPostgresSyncStateRepository(pool *pgxpool.Pool) *PostgresSyncStateRepository {
	return &PostgresSyncStateRepository{pool: pool}
}

// Save persists a sync state (create or update).
func (r *PostgresSyncStateRepository) Save(ctx context.Context, state *domain.SyncState) error {
	mapping, err := json.Marshal(state.Mapping())
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	pending, err := json.Marshal(state.PendingDeletions())
	if err != nil {
		return fmt.Errorf("encode pending deletions: %w", err)
	}

	var lastSyncedAt *time.Time
	if t := state.LastSyncedAt(); !t.IsZero() {
		lastSyncedAt = &t
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
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source_id) DO UPDATE SET
			event_mapping = EXCLUDED.event_mapping,
			pending_deletions = EXCLUDED.pending_deletions,
			last_synced_at = EXCLUDED.last_synced_at,
			sync_errors = EXCLUDED.sync_errors,
			last_error = EXCLUDED.last_error
	`
	_, err = r.pool.Exec(ctx, query,
		state.SourceID(), mapping, pending, lastSyncedAt, state.SyncErrors(), lastError)
	return err
}

// FindBySource loads the sync state for a calendar source.
func (r *PostgresSyncStateRepository) FindBySource(ctx context.Context, sourceID uuid.UUID) (*domain.SyncState, error) {
	query := `
		SELECT event_mapping, pending_deletions, last_synced_at, sync_errors, last_error
		FROM sync_state
		WHERE source_id = $1
	`
	row := r.pool.QueryRow(ctx, query, sourceID)

	var (
		mappingJSON  []byte
		pendingJSON  []byte
		lastSyncedAt *time.Time
		syncErrors   int
		lastError    *string
	)
	if err := row.Scan(&mappingJSON, &pendingJSON, &lastSyncedAt, &syncErrors, &lastError); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var mapping map[string]string
	if err := json.Unmarshal(mappingJSON, &mapping); err != nil {
		return nil, fmt.Errorf("decode mapping: %w", err)
	}
	var pending []string
	if err := json.Unmarshal(pendingJSON, &pending); err != nil {
		return nil, fmt.Errorf("decode pending deletions: %w", err)
	}

	var syncedAt time.Time
	if lastSyncedAt != nil {
		syncedAt = *lastSyncedAt
	}
	var errText string
	if lastError != nil {
		errText = *lastError
	}
	return domain.RehydrateSyncState(sourceID, mapping, pending, syncedAt, syncErrors, errText), nil
}

// Delete removes the sync state for a source.
func (r *PostgresSyncStateRepository) Delete(ctx context.Context, sourceID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sync_state WHERE source_id = $1`, sourceID)
	return err
}
