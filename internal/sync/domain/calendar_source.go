package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Domain errors for CalendarSource validation.
var (
	ErrEmptyName       = errors.New("source name cannot be empty")
	ErrInvalidProvider = errors.New("invalid provider type")
	ErrEmptyDirectory  = errors.New("source directory cannot be empty")
	ErrEmptyCalendarID = errors.New("remote calendar ID cannot be empty")
)

// CalendarSource is a registered local directory whose events are pushed to
// one remote calendar. Each source owns exactly one SyncState.
type CalendarSource struct {
	id          uuid.UUID
	name        string
	provider    ProviderType
	directory   string // local directory holding event files
	calendarID  string // remote calendar identifier ("primary", a path, ...)
	syncEnabled bool
	createdAt   time.Time
	updatedAt   time.Time
}

// NewCalendarSource creates and validates a calendar source.
func NewCalendarSource(name string, provider ProviderType, directory, calendarID string) (*CalendarSource, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}
	if !provider.IsValid() {
		return nil, ErrInvalidProvider
	}
	if strings.TrimSpace(directory) == "" {
		return nil, ErrEmptyDirectory
	}
	if strings.TrimSpace(calendarID) == "" {
		return nil, ErrEmptyCalendarID
	}
	now := time.Now()
	return &CalendarSource{
		id:          uuid.New(),
		name:        name,
		provider:    provider,
		directory:   directory,
		calendarID:  calendarID,
		syncEnabled: true,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// RehydrateCalendarSource recreates a calendar source from persisted data.
func RehydrateCalendarSource(
	id uuid.UUID,
	name string,
	provider ProviderType,
	directory string,
	calendarID string,
	syncEnabled bool,
	createdAt, updatedAt time.Time,
) *CalendarSource {
	return &CalendarSource{
		id:          id,
		name:        name,
		provider:    provider,
		directory:   directory,
		calendarID:  calendarID,
		syncEnabled: syncEnabled,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// Getters
func (c *CalendarSource) ID() uuid.UUID          { return c.id }
func (c *CalendarSource) Name() string           { return c.name }
func (c *CalendarSource) Provider() ProviderType { return c.provider }
func (c *CalendarSource) Directory() string      { return c.directory }
func (c *CalendarSource) CalendarID() string     { return c.calendarID }
func (c *CalendarSource) SyncEnabled() bool      { return c.syncEnabled }
func (c *CalendarSource) CreatedAt() time.Time   { return c.createdAt }
func (c *CalendarSource) UpdatedAt() time.Time   { return c.updatedAt }

// EnableSync turns periodic sync on for this source.
func (c *CalendarSource) EnableSync() {
	c.syncEnabled = true
	c.updatedAt = time.Now()
}

// DisableSync turns periodic sync off for this source.
func (c *CalendarSource) DisableSync() {
	c.syncEnabled = false
	c.updatedAt = time.Now()
}

// CalendarSourceRepository defines persistence for registered sources.
type CalendarSourceRepository interface {
	Save(ctx context.Context, source *CalendarSource) error
	FindByID(ctx context.Context, id uuid.UUID) (*CalendarSource, error)
	FindAll(ctx context.Context) ([]*CalendarSource, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
