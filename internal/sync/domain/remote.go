package domain

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// RemoteEvent is the provider-neutral payload pushed to a remote calendar.
// It never carries a remote identifier: remote IDs are always generated by
// the provider on insert and tracked only in the mapping table.
type RemoteEvent struct {
	Title  string
	AllDay bool
	Start  time.Time // zero when a timed event had no start time
	End    time.Time
}

// RemoteInstance is a record as it exists on the remote calendar.
type RemoteInstance struct {
	ID    string
	Title string
	Start time.Time
	End   time.Time
}

// TimeWindow bounds a remote list query.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// RemoteCalendar is the capability surface the sync core needs from a
// calendar provider. All failures are classified into the error taxonomy
// in errors.go.
type RemoteCalendar interface {
	// Insert creates a record and returns its provider-generated ID.
	Insert(ctx context.Context, payload RemoteEvent) (string, error)

	// Update overwrites the record with the given ID and returns the ID.
	Update(ctx context.Context, id string, payload RemoteEvent) (string, error)

	// Delete removes a record. A record that is already gone is success.
	Delete(ctx context.Context, id string) error

	// List returns records managed by this bridge inside the window,
	// optionally narrowed by a title query.
	List(ctx context.Context, window TimeWindow, titleQuery string) ([]RemoteInstance, error)

	// ExchangeAuthCode trades an authorization code for tokens.
	ExchangeAuthCode(ctx context.Context, code string) (*oauth2.Token, error)

	// RefreshAccessToken trades a refresh token for a fresh access token.
	RefreshAccessToken(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// EventSource supplies the complete current set of local events on every
// call; there is no incremental diff contract. The sync core only observes
// local state, it never mutates it.
type EventSource interface {
	ListEvents(ctx context.Context) ([]LocalEvent, error)
}
