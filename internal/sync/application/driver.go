package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/notesync/internal/sync/domain"
)

// DefaultSyncInterval is the default period between reconciliation runs.
const DefaultSyncInterval = 15 * time.Minute

// CredentialStore persists refreshed credentials after each run, since a
// refresh may rotate the access token.
type CredentialStore interface {
	Save(ctx context.Context, sourceID uuid.UUID, token *oauth2.Token) error
}

// RegisteredSource bundles everything the driver needs to reconcile one
// calendar source.
type RegisteredSource struct {
	Meta   *domain.CalendarSource
	Events domain.EventSource
	Engine *Engine
	Tokens TokenManager
}

// Driver periodically reconciles all registered calendar sources. It runs
// once immediately on Start, then on every interval tick until Stop.
// Stopping never cancels an in-flight run; it only prevents new ones.
type Driver struct {
	mu       sync.Mutex
	sources  map[uuid.UUID]*RegisteredSource
	inflight map[uuid.UUID]bool

	states   domain.SyncStateRepository
	creds    CredentialStore
	logger   *slog.Logger
	interval time.Duration

	running atomic.Bool
	stopCh  chan struct{}
	done    chan struct{}
}

// NewDriver creates a sync driver over the given persistence backends.
func NewDriver(states domain.SyncStateRepository, creds CredentialStore, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		sources:  make(map[uuid.UUID]*RegisteredSource),
		inflight: make(map[uuid.UUID]bool),
		states:   states,
		creds:    creds,
		logger:   logger,
		interval: DefaultSyncInterval,
	}
}

// Register adds a calendar source to the driver.
func (d *Driver) Register(source *RegisteredSource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources[source.Meta.ID()] = source
}

// Unregister removes a calendar source from the driver. An in-flight run for
// the source is allowed to finish; later ticks no longer see it.
func (d *Driver) Unregister(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sources, id)
}

// Interval returns the configured sync period.
func (d *Driver) Interval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.interval
}

// Running reports whether the periodic loop is active.
func (d *Driver) Running() bool {
	return d.running.Load()
}

// Start fires an immediate run and then re-fires on every interval tick.
// Starting an already-running driver is a no-op.
func (d *Driver) Start(ctx context.Context) {
	if !d.running.CompareAndSwap(false, true) {
		return
	}
	d.mu.Lock()
	interval := d.interval
	d.stopCh = make(chan struct{})
	d.done = make(chan struct{})
	stopCh, done := d.stopCh, d.done
	d.mu.Unlock()

	d.logger.Info("sync driver started", "interval", interval)

	go func() {
		defer close(done)
		d.RunAll(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				d.running.Store(false)
				d.logger.Info("sync driver stopped (context cancelled)")
				return
			case <-stopCh:
				d.logger.Info("sync driver stopped")
				return
			case <-ticker.C:
				d.RunAll(ctx)
			}
		}
	}()
}

// Stop cancels the periodic timer. An in-flight run is allowed to finish.
func (d *Driver) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}
	d.mu.Lock()
	stopCh, done := d.stopCh, d.done
	d.mu.Unlock()
	close(stopCh)
	<-done
}

// SetInterval changes the sync period, restarting the loop when running.
func (d *Driver) SetInterval(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	wasRunning := d.running.Load()
	if wasRunning {
		d.Stop()
	}
	d.mu.Lock()
	d.interval = interval
	d.mu.Unlock()
	if wasRunning {
		d.Start(ctx)
	}
}

// RunAll reconciles every authenticated, sync-enabled source concurrently.
// Sources are fully isolated: one source's failure never blocks another's.
func (d *Driver) RunAll(ctx context.Context) {
	d.mu.Lock()
	sources := make([]*RegisteredSource, 0, len(d.sources))
	for _, source := range d.sources {
		sources = append(sources, source)
	}
	d.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, source := range sources {
		if !source.Meta.SyncEnabled() || !source.Tokens.Authenticated() {
			continue
		}
		g.Go(func() error {
			if _, err := d.runSource(ctx, source); err != nil {
				d.logger.Warn("source sync failed",
					"source", source.Meta.Name(), "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// TriggerSync runs reconciliation for a single source immediately, bypassing
// the timer. It coordinates with the periodic loop through the per-source
// in-flight flag, so a manual trigger never overlaps a running sync.
func (d *Driver) TriggerSync(ctx context.Context, sourceID uuid.UUID) (*Result, error) {
	d.mu.Lock()
	source, ok := d.sources[sourceID]
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown calendar source %s", sourceID)
	}
	return d.runSource(ctx, source)
}

func (d *Driver) runSource(ctx context.Context, source *RegisteredSource) (*Result, error) {
	id := source.Meta.ID()
	d.mu.Lock()
	if d.inflight[id] {
		d.mu.Unlock()
		return nil, fmt.Errorf("sync already in flight for source %q", source.Meta.Name())
	}
	d.inflight[id] = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.inflight, id)
		d.mu.Unlock()
	}()

	events, err := source.Events.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list local events: %w", err)
	}

	result, runErr := source.Engine.Run(ctx, events)
	d.persist(ctx, source)
	if runErr != nil {
		return result, runErr
	}

	d.logger.Info("sync run completed",
		"source", source.Meta.Name(),
		"synced", result.Synced,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"deleted", result.Deleted,
	)
	return result, nil
}

// persist writes back sync state and possibly-rotated credentials. Failures
// are logged, not fatal: the next run re-derives correctness from the remote
// probe even with stale state.
func (d *Driver) persist(ctx context.Context, source *RegisteredSource) {
	if err := d.states.Save(ctx, source.Engine.State()); err != nil {
		d.logger.Error("failed to persist sync state",
			"source", source.Meta.Name(), "error", err)
	}
	if token := source.Tokens.Current(); token != nil && d.creds != nil {
		if err := d.creds.Save(ctx, source.Meta.ID(), token); err != nil {
			d.logger.Error("failed to persist credentials",
				"source", source.Meta.Name(), "error", err)
		}
	}
}
