package domain

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SyncState is the unit of persistence per calendar source: the event-key to
// remote-record mapping table, the pending-deletion set, and the last sync
// timestamp. It is exclusively owned by one reconciliation engine instance;
// internal locking exists only because batch items within a run mutate the
// mapping concurrently.
type SyncState struct {
	mu               sync.Mutex
	sourceID         uuid.UUID
	mapping          map[string]string   // event key -> remote record ID
	pendingDeletions map[string]struct{} // event keys awaiting delete retry
	lastSyncedAt     time.Time
	syncErrors       int // consecutive failed runs
	lastError        string
}

// NewSyncState creates an empty sync state for a calendar source.
func NewSyncState(sourceID uuid.UUID) *SyncState {
	return &SyncState{
		sourceID:         sourceID,
		mapping:          make(map[string]string),
		pendingDeletions: make(map[string]struct{}),
	}
}

// RehydrateSyncState recreates a sync state from persisted data.
func RehydrateSyncState(
	sourceID uuid.UUID,
	mapping map[string]string,
	pendingDeletions []string,
	lastSyncedAt time.Time,
	syncErrors int,
	lastError string,
) *SyncState {
	if mapping == nil {
		mapping = make(map[string]string)
	}
	pending := make(map[string]struct{}, len(pendingDeletions))
	for _, key := range pendingDeletions {
		pending[key] = struct{}{}
	}
	return &SyncState{
		sourceID:         sourceID,
		mapping:          mapping,
		pendingDeletions: pending,
		lastSyncedAt:     lastSyncedAt,
		syncErrors:       syncErrors,
		lastError:        lastError,
	}
}

// SourceID returns the owning calendar source.
func (s *SyncState) SourceID() uuid.UUID { return s.sourceID }

// LastSyncedAt returns the time of the last successful run.
func (s *SyncState) LastSyncedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSyncedAt
}

// SyncErrors returns the consecutive failed-run count.
func (s *SyncState) SyncErrors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncErrors
}

// LastError returns the last run error text, empty after a clean run.
func (s *SyncState) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// HasSynced returns true if at least one successful run has completed.
func (s *SyncState) HasSynced() bool {
	return !s.LastSyncedAt().IsZero()
}

// MappedRemoteID returns the remote record ID for a key, if any.
func (s *SyncState) MappedRemoteID(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.mapping[key]
	return id, ok
}

// RecordMapping stores the remote record ID for a key.
func (s *SyncState) RecordMapping(key, remoteID string) {
	if key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mapping[key] = remoteID
}

// MigrateKey moves a mapping from an old key to a new, more stable key.
// The old entry is removed so the orphan pass never sees it as stale.
// Returns the migrated remote ID and whether a migration happened; an
// existing mapping under newKey is never overwritten.
func (s *SyncState) MigrateKey(oldKey, newKey string) (string, bool) {
	if oldKey == "" || newKey == "" || oldKey == newKey {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.mapping[newKey]; exists {
		return "", false
	}
	id, ok := s.mapping[oldKey]
	if !ok {
		return "", false
	}
	s.mapping[newKey] = id
	delete(s.mapping, oldKey)
	if _, pending := s.pendingDeletions[oldKey]; pending {
		delete(s.pendingDeletions, oldKey)
		s.pendingDeletions[newKey] = struct{}{}
	}
	return id, true
}

// RemoveMapping drops the entry for a key.
func (s *SyncState) RemoveMapping(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mapping, key)
}

// Mapping returns a copy of the mapping table.
func (s *SyncState) Mapping() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.mapping))
	for k, v := range s.mapping {
		out[k] = v
	}
	return out
}

// MappingSize returns the number of tracked events.
func (s *SyncState) MappingSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mapping)
}

// AddPendingDeletion parks a key whose remote deletion failed transiently.
func (s *SyncState) AddPendingDeletion(key string) {
	if key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingDeletions[key] = struct{}{}
}

// ClearPendingDeletion removes a key from the pending set.
func (s *SyncState) ClearPendingDeletion(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pendingDeletions, key)
}

// PendingDeletions returns the parked keys in stable order.
func (s *SyncState) PendingDeletions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.pendingDeletions))
	for key := range s.pendingDeletions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MarkSyncSuccess records a clean run.
func (s *SyncState) MarkSyncSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSyncedAt = time.Now()
	s.syncErrors = 0
	s.lastError = ""
}

// MarkSyncFailure records a failed run.
func (s *SyncState) MarkSyncFailure(errText string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncErrors++
	s.lastError = errText
}

// SyncStateRepository defines persistence for sync state.
type SyncStateRepository interface {
	// Save persists a sync state (create or update).
	Save(ctx context.Context, state *SyncState) error

	// FindBySource loads the sync state for a calendar source.
	// Returns (nil, nil) when none has been persisted yet.
	FindBySource(ctx context.Context, sourceID uuid.UUID) (*SyncState, error)

	// Delete removes the sync state for a source.
	Delete(ctx context.Context, sourceID uuid.UUID) error
}
