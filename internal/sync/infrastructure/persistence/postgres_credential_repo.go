package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2"
)

// PostgresCredentialRepository implements auth.CredentialRepository using PostgreSQL.
type PostgresCredentialRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCredentialRepository creates a new PostgreSQL credential repository.
func NewPostgresCredentialRepository(pool *pgxpool.Pool) *PostgresCredentialRepository {
	return &PostgresCredentialRepository{pool: pool}
}

// Save upserts the credentials for a source.
func (r *PostgresCredentialRepository) Save(ctx context.Context, sourceID uuid.UUID, token *oauth2.Token) error {
	var expiry *time.Time
	if !token.Expiry.IsZero() {
		expiry = &token.Expiry
	}
	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	query := `
		INSERT INTO credentials (source_id, access_token, refresh_token, token_type, expiry)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_type = EXCLUDED.token_type,
			expiry = EXCLUDED.expiry
	`
	_, err := r.pool.Exec(ctx, query,
		sourceID, token.AccessToken, token.RefreshToken, tokenType, expiry)
	return err
}

// Find loads the credentials for a source.
func (r *PostgresCredentialRepository) Find(ctx context.Context, sourceID uuid.UUID) (*oauth2.Token, error) {
	query := `
		SELECT access_token, refresh_token, token_type, expiry
		FROM credentials
		WHERE source_id = $1
	`
	var (
		access    string
		refresh   string
		tokenType string
		expiry    *time.Time
	)
	err := r.pool.QueryRow(ctx, query, sourceID).Scan(&access, &refresh, &tokenType, &expiry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	token := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenType,
	}
	if expiry != nil {
		token.Expiry = *expiry
	}
	return token, nil
}

// Delete removes the credentials for a source.
func (r *PostgresCredentialRepository) Delete(ctx context.Context, sourceID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM credentials WHERE source_id = $1`, sourceID)
	return err
}
