package application

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/felixgeelhaar/notesync/internal/sync/domain"
)

// TokenManager is the credential surface the engine needs. Refresh only
// happens proactively through EnsureFresh, never as a reaction to a remote
// authorization failure.
type TokenManager interface {
	// Authenticated reports whether a usable credential is present.
	Authenticated() bool
	// EnsureFresh refreshes the access token when it is near expiry.
	EnsureFresh(ctx context.Context) error
	// Current returns the latest credentials for persistence.
	Current() *oauth2.Token
}

// Engine reconciles one calendar source against its remote calendar: it
// decides create vs. update vs. skip per event, removes orphaned remote
// records, and retries deletions that previously failed. One engine instance
// exclusively owns its SyncState; runs for the same source must not overlap.
type Engine struct {
	remote     domain.RemoteCalendar
	state      *domain.SyncState
	tokens     TokenManager
	logger     *slog.Logger
	batchSize  int
	batchDelay time.Duration
	inflight   singleflight.Group
}

// NewEngine creates a reconciliation engine for one calendar source.
func NewEngine(remote domain.RemoteCalendar, state *domain.SyncState, tokens TokenManager, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		remote:     remote,
		state:      state,
		tokens:     tokens,
		logger:     logger,
		batchSize:  DefaultBatchSize,
		batchDelay: DefaultBatchDelay,
	}
}

// WithBatchSize sets the number of concurrent remote calls per batch.
func (e *Engine) WithBatchSize(size int) *Engine {
	if size > 0 {
		e.batchSize = size
	}
	return e
}

// WithBatchDelay sets the pause between batches.
func (e *Engine) WithBatchDelay(delay time.Duration) *Engine {
	if delay >= 0 {
		e.batchDelay = delay
	}
	return e
}

// State returns the sync state owned by this engine.
func (e *Engine) State() *domain.SyncState { return e.state }

// SyncOne pushes a single local event to the remote calendar and returns the
// remote record ID. Recurring events return ("", nil) and count as skipped.
// Concurrent calls for the same event key coalesce onto one in-flight
// operation, so two logically-simultaneous calls can never both conclude
// "no mapping" and both insert.
func (e *Engine) SyncOne(ctx context.Context, event domain.LocalEvent) (string, error) {
	if !e.tokens.Authenticated() {
		return "", domain.ErrNotAuthenticated
	}
	if event.Recurring {
		return "", nil
	}
	if err := e.tokens.EnsureFresh(ctx); err != nil {
		return "", err
	}

	payload := ToRemoteEvent(event)
	key := event.Key()
	if key == "" {
		// Untrackable: push once, no mapping, no dedup possible later.
		return e.remote.Insert(ctx, payload)
	}

	id, err, _ := e.inflight.Do(key, func() (any, error) {
		return e.syncKeyed(ctx, event, key, payload)
	})
	if err != nil {
		return "", err
	}
	return id.(string), nil
}

func (e *Engine) syncKeyed(ctx context.Context, event domain.LocalEvent, key string, payload domain.RemoteEvent) (string, error) {
	// A previously-synced event may have been tracked under its explicit ID
	// before it had a file path. Move the mapping to the more stable key.
	if event.SourcePath != "" && event.ExplicitID != "" {
		if id, ok := e.state.MigrateKey(event.ExplicitID, event.SourcePath); ok {
			e.logger.Debug("migrated mapping key",
				"from", event.ExplicitID, "to", event.SourcePath, "remote_id", id)
		}
	}

	if id, ok := e.state.MappedRemoteID(key); ok {
		// Latest local state always overwrites remote; one-way-wins.
		return e.remote.Update(ctx, id, payload)
	}

	// No mapping: probe the remote time window for an exact title match
	// before creating, so a lost mapping does not turn into a duplicate.
	if !payload.Start.IsZero() {
		window := domain.TimeWindow{Start: payload.Start, End: payload.End}
		instances, err := e.remote.List(ctx, window, payload.Title)
		switch {
		case err != nil && domain.IsAuthError(err):
			return "", err
		case err != nil:
			e.logger.Warn("dedup probe failed, proceeding to insert", "key", key, "error", err)
		default:
			for _, inst := range instances {
				if inst.Title != payload.Title {
					continue
				}
				if _, err := e.remote.Update(ctx, inst.ID, payload); err != nil {
					return "", err
				}
				e.state.RecordMapping(key, inst.ID)
				return inst.ID, nil
			}
		}
	}

	// A parallel caller may have populated the mapping while we probed.
	if id, ok := e.state.MappedRemoteID(key); ok {
		return id, nil
	}

	newID, err := e.remote.Insert(ctx, payload)
	if err != nil {
		return "", err
	}

	// Insert race: if a different mapping appeared in the interim, the
	// record we just created is the duplicate. Remove it, keep theirs.
	if existing, ok := e.state.MappedRemoteID(key); ok && existing != newID {
		if err := e.remote.Delete(ctx, newID); err != nil {
			e.logger.Warn("failed to delete duplicate remote record",
				"remote_id", newID, "error", err)
		}
		return existing, nil
	}

	e.state.RecordMapping(key, newID)
	return newID, nil
}

type syncItem struct {
	index int
	event domain.LocalEvent
}

// Run performs one complete reconciliation pass: pending-deletion retry,
// then batched sync of the current local set, then orphan deletion. Per-item
// failures are aggregated into the counters; only authentication-class
// failures abort the run early.
func (e *Engine) Run(ctx context.Context, events []domain.LocalEvent) (*Result, error) {
	result := &Result{}
	if !e.tokens.Authenticated() {
		return result, domain.ErrNotAuthenticated
	}

	// Stale remote records are cleared before new state is pushed.
	e.retryPendingDeletions(ctx, result)

	events = dedupeEvents(events)
	items := make([]syncItem, len(events))
	for i, event := range events {
		items[i] = syncItem{index: i, event: event}
	}

	ids := make([]string, len(events))
	var authFailed atomic.Bool
	errs := runBatches(ctx, items, e.batchSize, e.batchDelay, func(ctx context.Context, item syncItem) error {
		if authFailed.Load() {
			return domain.ErrNotAuthenticated
		}
		id, err := e.SyncOne(ctx, item.event)
		if err != nil {
			if domain.IsAuthError(err) {
				authFailed.Store(true)
			}
			return err
		}
		ids[item.index] = id
		return nil
	})

	var authErr error
	for i, err := range errs {
		switch {
		case err == nil && ids[i] == "":
			result.Skipped++
		case err == nil:
			result.Synced++
		default:
			result.Failed++
			if authErr == nil && domain.IsAuthError(err) {
				authErr = err
			}
			e.logger.Warn("event sync failed", "key", events[i].DedupKey(), "error", err)
		}
	}
	if authErr != nil {
		e.state.MarkSyncFailure(authErr.Error())
		return result, authErr
	}

	current := make(map[string]struct{}, len(events))
	for _, event := range events {
		if key := event.Key(); key != "" {
			current[key] = struct{}{}
		}
	}
	deleted, err := e.ReconcileDeletions(ctx, current)
	result.Deleted += deleted
	if err != nil {
		e.state.MarkSyncFailure(err.Error())
		return result, err
	}

	e.state.MarkSyncSuccess()
	return result, nil
}

type orphan struct {
	key      string
	remoteID string
}

// ReconcileDeletions removes remote records whose event key is absent from
// the current local set. Already-gone records count as deleted; transient
// failures park the key in the pending set for the next run; the mapping
// entry is never dropped on an ambiguous failure. Afterwards the mapping
// holds no entry for a key outside currentKeys except those kept for retry.
func (e *Engine) ReconcileDeletions(ctx context.Context, currentKeys map[string]struct{}) (int, error) {
	var orphans []orphan
	for key, id := range e.state.Mapping() {
		if _, live := currentKeys[key]; !live {
			orphans = append(orphans, orphan{key: key, remoteID: id})
		}
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	var deleted atomic.Int64
	errs := runBatches(ctx, orphans, e.batchSize, e.batchDelay, func(ctx context.Context, o orphan) error {
		outcome, err := e.deleteByKey(ctx, o.key, o.remoteID)
		if outcome == domain.DeleteDone || outcome == domain.DeleteAlreadyGone {
			deleted.Add(1)
		}
		if err != nil && domain.IsAuthError(err) {
			return err
		}
		return nil
	})
	for _, err := range errs {
		if err != nil {
			return int(deleted.Load()), err
		}
	}
	return int(deleted.Load()), nil
}

// retryPendingDeletions re-attempts deletions that failed transiently on an
// earlier run.
func (e *Engine) retryPendingDeletions(ctx context.Context, result *Result) {
	for _, key := range e.state.PendingDeletions() {
		id, ok := e.state.MappedRemoteID(key)
		if !ok {
			// Mapping vanished through a key migration or manual edit;
			// nothing left to delete.
			e.state.ClearPendingDeletion(key)
			continue
		}
		outcome, _ := e.deleteByKey(ctx, key, id)
		switch outcome {
		case domain.DeleteDone, domain.DeleteAlreadyGone:
			result.Deleted++
		case domain.DeleteRetryable:
			e.logger.Debug("pending deletion still failing", "key", key)
		}
	}
}

// deleteByKey performs one idempotent remote deletion and keeps the mapping
// and pending set consistent with the outcome.
func (e *Engine) deleteByKey(ctx context.Context, key, remoteID string) (domain.DeleteOutcome, error) {
	err := e.remote.Delete(ctx, remoteID)
	switch {
	case err == nil:
		e.state.RemoveMapping(key)
		e.state.ClearPendingDeletion(key)
		return domain.DeleteDone, nil
	case errors.Is(err, domain.ErrNotFound):
		// Idempotent delete: already gone counts as success.
		e.state.RemoveMapping(key)
		e.state.ClearPendingDeletion(key)
		return domain.DeleteAlreadyGone, nil
	case domain.IsRetryable(err):
		e.state.AddPendingDeletion(key)
		e.logger.Warn("orphan deletion failed, queued for retry", "key", key, "error", err)
		return domain.DeleteRetryable, err
	default:
		e.logger.Warn("orphan deletion failed", "key", key, "error", err)
		return domain.DeleteFatal, err
	}
}
