package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/notesync/internal/sync/domain"
)

// PostgresCalendarSourceRepository implements CalendarSourceRepository using PostgreSQL.
type PostgresCalendarSourceRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCalendarSourceRepository creates a new PostgreSQL source repository.
func NewPostgresCalendarSourceRepository(pool *pgxpool.Pool) *PostgresCalendarSourceRepository {
	return &PostgresCalendarSourceRepository{pool: pool}
}

// Save persists a calendar source (create or update).
func (r *PostgresCalendarSourceRepository) Save(ctx context.Context, source *domain.CalendarSource) error {
	query := `
		INSERT INTO calendar_sources (
			id, name, provider, directory, calendar_id, sync_enabled,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			provider = EXCLUDED.provider,
			directory = EXCLUDED.directory,
			calendar_id = EXCLUDED.calendar_id,
			sync_enabled = EXCLUDED.sync_enabled,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query,
		source.ID(),
		source.Name(),
		source.Provider().String(),
		source.Directory(),
		source.CalendarID(),
		source.SyncEnabled(),
		source.CreatedAt(),
		source.UpdatedAt(),
	)
	return err
}

// FindByID loads one calendar source.
func (r *PostgresCalendarSourceRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.CalendarSource, error) {
	query := `
		SELECT id, name, provider, directory, calendar_id, sync_enabled,
			   created_at, updated_at
		FROM calendar_sources
		WHERE id = $1
	`
	source, err := r.scanRow(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return source, err
}

// FindAll returns every registered calendar source.
func (r *PostgresCalendarSourceRepository) FindAll(ctx context.Context) ([]*domain.CalendarSource, error) {
	query := `
		SELECT id, name, provider, directory, calendar_id, sync_enabled,
			   created_at, updated_at
		FROM calendar_sources
		ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*domain.CalendarSource
	for rows.Next() {
		source, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

// Delete removes a calendar source.
func (r *PostgresCalendarSourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM calendar_sources WHERE id = $1`, id)
	return err
}

func (r *PostgresCalendarSourceRepository) scanRow(row pgx.Row) (*domain.CalendarSource, error) {
	var (
		id          uuid.UUID
		name        string
		provider    string
		directory   string
		calendarID  string
		syncEnabled bool
		createdAt   time.Time
		updatedAt   time.Time
	)
	if err := row.Scan(&id, &name, &provider, &directory, &calendarID, &syncEnabled, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return domain.RehydrateCalendarSource(
		id, name, domain.ProviderType(provider), directory, calendarID,
		syncEnabled, createdAt, updatedAt,
	), nil
}
