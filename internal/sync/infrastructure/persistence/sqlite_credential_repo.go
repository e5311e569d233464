package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// SQLiteCredentialRepository implements auth.CredentialRepository using SQLite.
type SQLiteCredentialRepository struct {
	db *sql.DB
}

// NewSQLiteCredentialRepository creates a new SQLite credential repository.
func NewSQLiteCredentialRepository(db *sql.DB) *SQLiteCredentialRepository {
	return &SQLiteCredentialRepository{db: db}
}

// Save upserts the credentials for a source.
func (r *SQLiteCredentialRepository) Save(ctx context.Context, sourceID uuid.UUID, token *oauth2.Token) error {
	var expiry *string
	if !token.Expiry.IsZero() {
		formatted := token.Expiry.Format(time.RFC3339)
		expiry = &formatted
	}
	query := `
		INSERT INTO credentials (source_id, access_token, refresh_token, token_type, expiry)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (source_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			expiry = excluded.expiry
	`
	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	_, err := r.db.ExecContext(ctx, query,
		sourceID.String(), token.AccessToken, token.RefreshToken, tokenType, expiry)
	return err
}

// Find loads the credentials for a source.
func (r *SQLiteCredentialRepository) Find(ctx context.Context, sourceID uuid.UUID) (*oauth2.Token, error) {
	query := `
		SELECT access_token, refresh_token, token_type, expiry
		FROM credentials
		WHERE source_id = ?
	`
	row := r.db.QueryRowContext(ctx, query, sourceID.String())

	var (
		access    string
		refresh   string
		tokenType string
		expiry    sql.NullString
	)
	if err := row.Scan(&access, &refresh, &tokenType, &expiry); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	token := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenType,
	}
	if expiry.Valid {
		parsed, err := time.Parse(time.RFC3339, expiry.String)
		if err != nil {
			return nil, err
		}
		token.Expiry = parsed
	}
	return token, nil
}

// Delete removes the credentials for a source.
func (r *SQLiteCredentialRepository) Delete(ctx context.Context, sourceID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE source_id = ?`, sourceID.String())
	return err
}
