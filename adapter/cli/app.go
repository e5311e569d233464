// Package cli wires the sync core into cobra commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/felixgeelhaar/notesync/internal/auth"
	"github.com/felixgeelhaar/notesync/internal/source/markdown"
	"github.com/felixgeelhaar/notesync/internal/sync/application"
	"github.com/felixgeelhaar/notesync/internal/sync/domain"
	"github.com/felixgeelhaar/notesync/internal/sync/infrastructure/caldav"
	"github.com/felixgeelhaar/notesync/internal/sync/infrastructure/google"
	"github.com/felixgeelhaar/notesync/internal/sync/infrastructure/persistence"
	"github.com/felixgeelhaar/notesync/pkg/config"
)

// SourceRuntime is one registered source plus the provider-specific handles
// the CLI needs (OAuth flow, manual trigger).
type SourceRuntime struct {
	Registered *application.RegisteredSource
	Manager    *auth.Manager
	Google     *google.Client // nil for non-OAuth providers
}

// App holds the wired application container.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Sources  domain.CalendarSourceRepository
	States   domain.SyncStateRepository
	Creds    auth.CredentialRepository
	Driver   *application.Driver
	Runtimes map[uuid.UUID]*SourceRuntime

	closers []func()
}

// NewApp builds the container: storage, repositories, and one runtime per
// registered calendar source.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Runtimes: make(map[uuid.UUID]*SourceRuntime),
	}

	if cfg.UsePostgres() {
		pool, err := persistence.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, pool.Close)
		if err := persistence.MigratePostgres(ctx, pool); err != nil {
			app.Close()
			return nil, err
		}
		app.Sources = persistence.NewPostgresCalendarSourceRepository(pool)
		app.States = persistence.NewPostgresSyncStateRepository(pool)
		app.Creds = persistence.NewPostgresCredentialRepository(pool)
	} else {
		db, err := persistence.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() { _ = db.Close() })
		if err := persistence.MigrateSQLite(ctx, db); err != nil {
			app.Close()
			return nil, err
		}
		app.Sources = persistence.NewSQLiteCalendarSourceRepository(db)
		app.States = persistence.NewSQLiteSyncStateRepository(db)
		app.Creds = persistence.NewSQLiteCredentialRepository(db)
	}

	app.Driver = application.NewDriver(app.States, app.Creds, logger)
	app.Driver.SetInterval(ctx, cfg.SyncInterval)

	sources, err := app.Sources.FindAll(ctx)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("load calendar sources: %w", err)
	}
	for _, source := range sources {
		if err := app.RegisterSource(ctx, source); err != nil {
			app.Close()
			return nil, err
		}
	}
	return app, nil
}

// RegisterSource builds the runtime for one source and registers it with
// the driver.
func (a *App) RegisterSource(ctx context.Context, source *domain.CalendarSource) error {
	var (
		remote  domain.RemoteCalendar
		manager *auth.Manager
		gclient *google.Client
	)

	switch source.Provider() {
	case domain.ProviderGoogle:
		client := google.NewClient(a.oauthConfig(), source.CalendarID(), a.Logger)
		token, err := a.Creds.Find(ctx, source.ID())
		if err != nil {
			return fmt.Errorf("load credentials for %q: %w", source.Name(), err)
		}
		manager = auth.NewManager(client, token, a.Logger)
		client.WithCredentials(manager)
		remote, gclient = client, client
	case domain.ProviderCalDAV:
		client := caldav.NewClient(
			a.Config.CalDAVURL, a.Config.CalDAVUsername, a.Config.CalDAVPassword, a.Logger)
		if a.Config.CalDAVPath != "" {
			client.WithCalendarPath(a.Config.CalDAVPath)
		} else if source.CalendarID() != "primary" {
			client.WithCalendarPath(source.CalendarID())
		}
		manager = auth.NewStaticManager()
		remote = client
	default:
		return fmt.Errorf("source %q: unsupported provider %q", source.Name(), source.Provider())
	}

	state, err := a.States.FindBySource(ctx, source.ID())
	if err != nil {
		return fmt.Errorf("load sync state for %q: %w", source.Name(), err)
	}
	if state == nil {
		state = domain.NewSyncState(source.ID())
	}

	engine := application.NewEngine(remote, state, manager, a.Logger).
		WithBatchSize(a.Config.BatchSize).
		WithBatchDelay(a.Config.BatchDelay)

	registered := &application.RegisteredSource{
		Meta:   source,
		Events: markdown.NewSource(source.Directory(), a.Logger),
		Engine: engine,
		Tokens: manager,
	}
	a.Driver.Register(registered)
	a.Runtimes[source.ID()] = &SourceRuntime{
		Registered: registered,
		Manager:    manager,
		Google:     gclient,
	}
	return nil
}

// ResolveSource finds a runtime by source name or ID prefix.
func (a *App) ResolveSource(nameOrID string) (*SourceRuntime, error) {
	for id, runtime := range a.Runtimes {
		if runtime.Registered.Meta.Name() == nameOrID ||
			strings.HasPrefix(id.String(), strings.ToLower(nameOrID)) {
			return runtime, nil
		}
	}
	return nil, fmt.Errorf("unknown calendar source %q", nameOrID)
}

// Close releases storage handles.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     a.Config.OAuthClientID,
		ClientSecret: a.Config.OAuthClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  a.Config.OAuthAuthURL,
			TokenURL: a.Config.OAuthTokenURL,
		},
		RedirectURL: a.Config.OAuthRedirectURL,
		Scopes:      []string{"https://www.googleapis.com/auth/calendar.events"},
	}
}
