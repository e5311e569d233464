package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/notesync/internal/sync/domain"
)

func TestNewSyncState(t *testing.T) {
	sourceID := uuid.New()

	state := domain.NewSyncState(sourceID)

	require.NotNil(t, state)
	assert.Equal(t, sourceID, state.SourceID())
	assert.Equal(t, 0, state.MappingSize())
	assert.Empty(t, state.PendingDeletions())
	assert.True(t, state.LastSyncedAt().IsZero())
	assert.Equal(t, 0, state.SyncErrors())
	assert.Equal(t, "", state.LastError())
	assert.False(t, state.HasSynced())
}

func TestSyncState_RecordMapping(t *testing.T) {
	state := domain.NewSyncState(uuid.New())

	state.RecordMapping("notes/standup.md", "remote-1")

	id, ok := state.MappedRemoteID("notes/standup.md")
	assert.True(t, ok)
	assert.Equal(t, "remote-1", id)

	// Empty keys are never stored.
	state.RecordMapping("", "remote-2")
	assert.Equal(t, 1, state.MappingSize())
}

func TestSyncState_RemoveMapping(t *testing.T) {
	state := domain.NewSyncState(uuid.New())
	state.RecordMapping("a.md", "remote-1")

	state.RemoveMapping("a.md")

	_, ok := state.MappedRemoteID("a.md")
	assert.False(t, ok)
	assert.Equal(t, 0, state.MappingSize())
}

func TestSyncState_MigrateKey(t *testing.T) {
	state := domain.NewSyncState(uuid.New())
	state.RecordMapping("explicit-id-1", "remote-1")
	state.AddPendingDeletion("explicit-id-1")

	id, ok := state.MigrateKey("explicit-id-1", "notes/a.md")

	assert.True(t, ok)
	assert.Equal(t, "remote-1", id)

	_, oldExists := state.MappedRemoteID("explicit-id-1")
	assert.False(t, oldExists)
	newID, newExists := state.MappedRemoteID("notes/a.md")
	assert.True(t, newExists)
	assert.Equal(t, "remote-1", newID)

	// The pending-deletion entry follows the key.
	assert.Equal(t, []string{"notes/a.md"}, state.PendingDeletions())
}

func TestSyncState_MigrateKey_NoOverwrite(t *testing.T) {
	state := domain.NewSyncState(uuid.New())
	state.RecordMapping("old-key", "remote-old")
	state.RecordMapping("new-key", "remote-new")

	_, ok := state.MigrateKey("old-key", "new-key")

	assert.False(t, ok)
	id, _ := state.MappedRemoteID("new-key")
	assert.Equal(t, "remote-new", id)
	id, _ = state.MappedRemoteID("old-key")
	assert.Equal(t, "remote-old", id)
}

func TestSyncState_MigrateKey_MissingOldKey(t *testing.T) {
	state := domain.NewSyncState(uuid.New())

	_, ok := state.MigrateKey("absent", "notes/a.md")

	assert.False(t, ok)
	assert.Equal(t, 0, state.MappingSize())
}

func TestSyncState_PendingDeletions(t *testing.T) {
	state := domain.NewSyncState(uuid.New())

	state.AddPendingDeletion("b.md")
	state.AddPendingDeletion("a.md")
	state.AddPendingDeletion("a.md") // idempotent
	state.AddPendingDeletion("")     // ignored

	assert.Equal(t, []string{"a.md", "b.md"}, state.PendingDeletions())

	state.ClearPendingDeletion("a.md")
	assert.Equal(t, []string{"b.md"}, state.PendingDeletions())
}

func TestSyncState_Mapping_ReturnsCopy(t *testing.T) {
	state := domain.NewSyncState(uuid.New())
	state.RecordMapping("a.md", "remote-1")

	snapshot := state.Mapping()
	snapshot["a.md"] = "tampered"
	snapshot["b.md"] = "injected"

	id, _ := state.MappedRemoteID("a.md")
	assert.Equal(t, "remote-1", id)
	assert.Equal(t, 1, state.MappingSize())
}

func TestSyncState_MarkSyncSuccess(t *testing.T) {
	state := domain.NewSyncState(uuid.New())
	state.MarkSyncFailure("error 1")
	state.MarkSyncFailure("error 2")
	assert.Equal(t, 2, state.SyncErrors())
	assert.Equal(t, "error 2", state.LastError())

	state.MarkSyncSuccess()

	assert.WithinDuration(t, time.Now(), state.LastSyncedAt(), time.Second)
	assert.Equal(t, 0, state.SyncErrors())
	assert.Equal(t, "", state.LastError())
	assert.True(t, state.HasSynced())
}

func TestSyncState_MarkSyncFailure(t *testing.T) {
	state := domain.NewSyncState(uuid.New())

	state.MarkSyncFailure("connection timeout")

	assert.Equal(t, 1, state.SyncErrors())
	assert.Equal(t, "connection timeout", state.LastError())

	state.MarkSyncFailure("rate limited")

	assert.Equal(t, 2, state.SyncErrors())
	assert.Equal(t, "rate limited", state.LastError())
}

func TestRehydrateSyncState(t *testing.T) {
	sourceID := uuid.New()
	mapping := map[string]string{"a.md": "remote-1", "b.md": "remote-2"}
	pending := []string{"c.md"}
	lastSyncedAt := time.Now().UTC().Add(-time.Hour)

	state := domain.RehydrateSyncState(sourceID, mapping, pending, lastSyncedAt, 3, "rate limited")

	require.NotNil(t, state)
	assert.Equal(t, sourceID, state.SourceID())
	assert.Equal(t, 2, state.MappingSize())
	id, ok := state.MappedRemoteID("b.md")
	assert.True(t, ok)
	assert.Equal(t, "remote-2", id)
	assert.Equal(t, []string{"c.md"}, state.PendingDeletions())
	assert.Equal(t, lastSyncedAt, state.LastSyncedAt())
	assert.Equal(t, 3, state.SyncErrors())
	assert.Equal(t, "rate limited", state.LastError())
	assert.True(t, state.HasSynced())
}

func TestRehydrateSyncState_NilMapping(t *testing.T) {
	state := domain.RehydrateSyncState(uuid.New(), nil, nil, time.Time{}, 0, "")

	require.NotNil(t, state)
	state.RecordMapping("a.md", "remote-1")
	assert.Equal(t, 1, state.MappingSize())
}
