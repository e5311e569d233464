package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/felixgeelhaar/notesync/internal/auth"
	"github.com/felixgeelhaar/notesync/internal/sync/domain"
)

type fakeExchanger struct {
	exchangeToken *oauth2.Token
	exchangeErr   error
	refreshToken  *oauth2.Token
	refreshErr    error
	refreshCalls  int
	lastRefresh   string
}

func (f *fakeExchanger) ExchangeAuthCode(_ context.Context, code string) (*oauth2.Token, error) {
	return f.exchangeToken, f.exchangeErr
}

func (f *fakeExchanger) RefreshAccessToken(_ context.Context, refreshToken string) (*oauth2.Token, error) {
	f.refreshCalls++
	f.lastRefresh = refreshToken
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshToken, nil
}

func validToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(time.Hour),
	}
}

func TestManager_Authenticated(t *testing.T) {
	tests := []struct {
		name  string
		token *oauth2.Token
		want  bool
	}{
		{"no token", nil, false},
		{"valid token", validToken(), true},
		{
			"expired with refresh token",
			&oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(-time.Hour)},
			true,
		},
		{
			"expired without refresh token",
			&oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(-time.Hour)},
			false,
		},
		{
			"no expiry",
			&oauth2.Token{AccessToken: "a"},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := auth.NewManager(&fakeExchanger{}, tt.token, nil)
			assert.Equal(t, tt.want, manager.Authenticated())
		})
	}
}

func TestManager_EnsureFresh_NoRefreshNeeded(t *testing.T) {
	exchanger := &fakeExchanger{}
	manager := auth.NewManager(exchanger, validToken(), nil)

	err := manager.EnsureFresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, exchanger.refreshCalls)
}

func TestManager_EnsureFresh_RefreshesNearExpiry(t *testing.T) {
	exchanger := &fakeExchanger{
		refreshToken: &oauth2.Token{
			AccessToken: "new-access",
			Expiry:      time.Now().Add(time.Hour),
		},
	}
	token := &oauth2.Token{
		AccessToken:  "old-access",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(30 * time.Second), // inside the leeway
	}
	manager := auth.NewManager(exchanger, token, nil)

	err := manager.EnsureFresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, exchanger.refreshCalls)
	assert.Equal(t, "refresh-1", exchanger.lastRefresh)
	assert.Equal(t, "new-access", manager.AccessToken())
	// The provider omitted the refresh token on rotation; the old one stays.
	assert.Equal(t, "refresh-1", manager.Current().RefreshToken)
}

func TestManager_EnsureFresh_RefreshFailure(t *testing.T) {
	exchanger := &fakeExchanger{refreshErr: errors.New("invalid_grant")}
	token := &oauth2.Token{
		AccessToken:  "old",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(-time.Minute),
	}
	manager := auth.NewManager(exchanger, token, nil)

	err := manager.EnsureFresh(context.Background())

	assert.ErrorIs(t, err, domain.ErrAuthRefresh)
}

func TestManager_EnsureFresh_ExpiredWithoutRefreshToken(t *testing.T) {
	token := &oauth2.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Minute)}
	manager := auth.NewManager(&fakeExchanger{}, token, nil)

	err := manager.EnsureFresh(context.Background())

	assert.ErrorIs(t, err, domain.ErrAuthRefresh)
}

func TestManager_EnsureFresh_NotAuthenticated(t *testing.T) {
	manager := auth.NewManager(&fakeExchanger{}, nil, nil)

	err := manager.EnsureFresh(context.Background())

	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestManager_Exchange(t *testing.T) {
	exchanger := &fakeExchanger{exchangeToken: validToken()}
	manager := auth.NewManager(exchanger, nil, nil)

	require.False(t, manager.Authenticated())

	err := manager.Exchange(context.Background(), "auth-code")

	require.NoError(t, err)
	assert.True(t, manager.Authenticated())
	assert.Equal(t, "access", manager.AccessToken())
}

func TestManager_Exchange_Failure(t *testing.T) {
	exchanger := &fakeExchanger{exchangeErr: errors.New("invalid code")}
	manager := auth.NewManager(exchanger, nil, nil)

	err := manager.Exchange(context.Background(), "bad-code")

	assert.Error(t, err)
	assert.False(t, manager.Authenticated())
}

func TestManager_Current_ReturnsCopy(t *testing.T) {
	manager := auth.NewManager(&fakeExchanger{}, validToken(), nil)

	current := manager.Current()
	require.NotNil(t, current)
	current.AccessToken = "tampered"

	assert.Equal(t, "access", manager.AccessToken())
}

func TestManager_Clear(t *testing.T) {
	manager := auth.NewManager(&fakeExchanger{}, validToken(), nil)

	manager.Clear()

	assert.False(t, manager.Authenticated())
	assert.Nil(t, manager.Current())
	assert.Equal(t, "", manager.AccessToken())
}

func TestNewStaticManager(t *testing.T) {
	manager := auth.NewStaticManager()

	assert.True(t, manager.Authenticated())
	// Static credentials never expire, so freshness is a no-op.
	assert.NoError(t, manager.EnsureFresh(context.Background()))
	assert.Equal(t, "static", manager.AccessToken())
}
