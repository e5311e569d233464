package auth

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// CredentialRepository persists per-source OAuth credentials. The stored
// values must round-trip exactly: string tokens, RFC3339 expiry.
type CredentialRepository interface {
	// Save upserts the credentials for a source.
	Save(ctx context.Context, sourceID uuid.UUID, token *oauth2.Token) error

	// Find loads the credentials for a source. Returns (nil, nil) when the
	// source has never authenticated.
	Find(ctx context.Context, sourceID uuid.UUID) (*oauth2.Token, error)

	// Delete removes the credentials for a source.
	Delete(ctx context.Context, sourceID uuid.UUID) error
}
