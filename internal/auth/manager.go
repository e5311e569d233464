// Package auth holds OAuth-style credentials for a calendar source and
// refreshes the access token transparently before it expires.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/felixgeelhaar/notesync/internal/sync/domain"
)

// RefreshLeeway is how close to expiry a token may get before a proactive
// refresh is issued.
const RefreshLeeway = 60 * time.Second

// Exchanger is the auth capability of a remote calendar client.
type Exchanger interface {
	ExchangeAuthCode(ctx context.Context, code string) (*oauth2.Token, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Manager owns the credentials for one calendar source. Refresh happens
// only proactively via EnsureFresh; a refresh failure surfaces as
// domain.ErrAuthRefresh and is never retried locally, since the user has to
// re-authenticate anyway.
type Manager struct {
	mu        sync.Mutex
	token     *oauth2.Token
	exchanger Exchanger
	logger    *slog.Logger
}

// NewManager creates a token manager. token may be nil when the source has
// never authenticated.
func NewManager(exchanger Exchanger, token *oauth2.Token, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{token: token, exchanger: exchanger, logger: logger}
}

// NewStaticManager creates a manager around a non-expiring credential, for
// providers like CalDAV that use basic auth instead of OAuth.
func NewStaticManager() *Manager {
	return &Manager{token: &oauth2.Token{AccessToken: "static"}}
}

// Authenticated reports whether a usable credential is present.
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return false
	}
	return m.token.RefreshToken != "" || m.token.Valid() || m.token.Expiry.IsZero()
}

// EnsureFresh refreshes the access token when its expiry is within
// RefreshLeeway of now. Tokens without an expiry never refresh.
func (m *Manager) EnsureFresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return domain.ErrNotAuthenticated
	}
	if m.token.Expiry.IsZero() || time.Until(m.token.Expiry) > RefreshLeeway {
		return nil
	}
	if m.token.RefreshToken == "" {
		return fmt.Errorf("%w: access token expired and no refresh token present", domain.ErrAuthRefresh)
	}

	refreshed, err := m.exchanger.RefreshAccessToken(ctx, m.token.RefreshToken)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuthRefresh, err)
	}
	// Providers may omit the refresh token on rotation; keep the old one.
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = m.token.RefreshToken
	}
	m.token = refreshed
	m.logger.Debug("access token refreshed", "expires_at", refreshed.Expiry)
	return nil
}

// Exchange trades an authorization code for credentials and stores them.
func (m *Manager) Exchange(ctx context.Context, code string) error {
	token, err := m.exchanger.ExchangeAuthCode(ctx, code)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

// Current returns a copy of the latest credentials for persistence, or nil
// when unauthenticated.
func (m *Manager) Current() *oauth2.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return nil
	}
	copied := *m.token
	return &copied
}

// Clear drops the stored credentials.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()
}

// AccessToken returns the current bearer token, empty when absent.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return ""
	}
	return m.token.AccessToken
}
