package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/felixgeelhaar/notesync/internal/sync/application"
	"github.com/felixgeelhaar/notesync/internal/sync/domain"
)

type fakeStateRepo struct {
	mu    sync.Mutex
	saves int
}

func (r *fakeStateRepo) Save(context.Context, *domain.SyncState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	return nil
}

func (r *fakeStateRepo) FindBySource(context.Context, uuid.UUID) (*domain.SyncState, error) {
	return nil, nil
}

func (r *fakeStateRepo) Delete(context.Context, uuid.UUID) error { return nil }

func (r *fakeStateRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

type fakeCredStore struct {
	mu    sync.Mutex
	saves int
}

func (s *fakeCredStore) Save(context.Context, uuid.UUID, *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	return nil
}

func (s *fakeCredStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

type fakeEventSource struct {
	mu      sync.Mutex
	events  []domain.LocalEvent
	err     error
	release chan struct{} // when set, ListEvents blocks until closed
	started chan struct{} // when set, closed once ListEvents is entered
}

func (s *fakeEventSource) ListEvents(context.Context) ([]domain.LocalEvent, error) {
	if s.started != nil {
		close(s.started)
	}
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events, s.err
}

func newRegisteredSource(t *testing.T, remote domain.RemoteCalendar, events *fakeEventSource) *application.RegisteredSource {
	t.Helper()
	meta, err := domain.NewCalendarSource("test", domain.ProviderGoogle, "/notes", "primary")
	require.NoError(t, err)
	tokens := &fakeTokens{authenticated: true, token: &oauth2.Token{AccessToken: "tok"}}
	engine := application.NewEngine(remote, domain.NewSyncState(meta.ID()), tokens, discardLogger()).
		WithBatchDelay(0)
	return &application.RegisteredSource{
		Meta:   meta,
		Events: events,
		Engine: engine,
		Tokens: tokens,
	}
}

func TestDriver_TriggerSync(t *testing.T) {
	remote := newFakeRemote()
	states := &fakeStateRepo{}
	creds := &fakeCredStore{}
	driver := application.NewDriver(states, creds, discardLogger())

	source := newRegisteredSource(t, remote, &fakeEventSource{
		events: []domain.LocalEvent{timedEvent("a.md", "Alpha", "09:00")},
	})
	driver.Register(source)

	result, err := driver.TriggerSync(context.Background(), source.Meta.ID())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 1, remote.recordCount())
	// State and credentials are persisted after every run.
	assert.Equal(t, 1, states.saveCount())
	assert.Equal(t, 1, creds.saveCount())
}

func TestDriver_Unregister(t *testing.T) {
	remote := newFakeRemote()
	driver := application.NewDriver(&fakeStateRepo{}, &fakeCredStore{}, discardLogger())

	source := newRegisteredSource(t, remote, &fakeEventSource{
		events: []domain.LocalEvent{timedEvent("a.md", "Alpha", "09:00")},
	})
	driver.Register(source)

	_, err := driver.TriggerSync(context.Background(), source.Meta.ID())
	require.NoError(t, err)

	driver.Unregister(source.Meta.ID())

	// A removed source is gone from manual triggers and periodic runs alike.
	_, err = driver.TriggerSync(context.Background(), source.Meta.ID())
	assert.ErrorContains(t, err, "unknown calendar source")

	driver.RunAll(context.Background())
	inserts, updates, _, _ := remote.counts()
	assert.Equal(t, 1, inserts+updates)
}

func TestDriver_TriggerSync_UnknownSource(t *testing.T) {
	driver := application.NewDriver(&fakeStateRepo{}, &fakeCredStore{}, discardLogger())

	_, err := driver.TriggerSync(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestDriver_TriggerSync_RejectsOverlap(t *testing.T) {
	remote := newFakeRemote()
	driver := application.NewDriver(&fakeStateRepo{}, &fakeCredStore{}, discardLogger())

	events := &fakeEventSource{
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	source := newRegisteredSource(t, remote, events)
	driver.Register(source)

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, _ = driver.TriggerSync(context.Background(), source.Meta.ID())
	}()
	<-events.started

	_, err := driver.TriggerSync(context.Background(), source.Meta.ID())
	assert.ErrorContains(t, err, "in flight")

	close(events.release)
	<-firstDone
}

func TestDriver_RunAll_SkipsDisabledAndUnauthenticated(t *testing.T) {
	remote := newFakeRemote()
	states := &fakeStateRepo{}
	driver := application.NewDriver(states, &fakeCredStore{}, discardLogger())

	disabled := newRegisteredSource(t, remote, &fakeEventSource{
		events: []domain.LocalEvent{timedEvent("a.md", "Alpha", "09:00")},
	})
	disabled.Meta.DisableSync()
	driver.Register(disabled)

	unauthenticated := newRegisteredSource(t, remote, &fakeEventSource{
		events: []domain.LocalEvent{timedEvent("b.md", "Beta", "10:00")},
	})
	unauthenticated.Tokens.(*fakeTokens).authenticated = false
	driver.Register(unauthenticated)

	active := newRegisteredSource(t, remote, &fakeEventSource{
		events: []domain.LocalEvent{timedEvent("c.md", "Gamma", "11:00")},
	})
	driver.Register(active)

	driver.RunAll(context.Background())

	// Only the active source reached the remote.
	assert.Equal(t, 1, remote.recordCount())
	assert.Equal(t, 1, states.saveCount())
}

func TestDriver_StartStop(t *testing.T) {
	remote := newFakeRemote()
	driver := application.NewDriver(&fakeStateRepo{}, &fakeCredStore{}, discardLogger())
	source := newRegisteredSource(t, remote, &fakeEventSource{})
	driver.Register(source)

	assert.False(t, driver.Running())

	driver.Start(context.Background())
	assert.True(t, driver.Running())

	// Starting again is a no-op.
	driver.Start(context.Background())
	assert.True(t, driver.Running())

	driver.Stop()
	assert.False(t, driver.Running())

	// Stopping again is a no-op.
	driver.Stop()
}

func TestDriver_SetInterval(t *testing.T) {
	driver := application.NewDriver(&fakeStateRepo{}, &fakeCredStore{}, discardLogger())

	assert.Equal(t, application.DefaultSyncInterval, driver.Interval())

	driver.SetInterval(context.Background(), time.Minute)
	assert.Equal(t, time.Minute, driver.Interval())

	// Non-positive intervals are ignored.
	driver.SetInterval(context.Background(), 0)
	assert.Equal(t, time.Minute, driver.Interval())
}

func TestDriver_SetInterval_RestartsRunningLoop(t *testing.T) {
	driver := application.NewDriver(&fakeStateRepo{}, &fakeCredStore{}, discardLogger())

	driver.Start(context.Background())
	driver.SetInterval(context.Background(), time.Minute)

	assert.True(t, driver.Running())
	assert.Equal(t, time.Minute, driver.Interval())

	driver.Stop()
}
