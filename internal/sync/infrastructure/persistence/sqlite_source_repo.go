package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/notesync/internal/sync/domain"
)

// SQLiteCalendarSourceRepository implements CalendarSourceRepository using SQLite.
type SQLiteCalendarSourceRepository struct {
	db *sql.DB
}

// NewSQLiteCalendarSourceRepository creates a new SQLite source repository.
func NewSQLiteCalendarSourceRepository(db *sql.DB) *SQLiteCalendarSourceRepository {
	return &SQLiteCalendarSourceRepository{db: db}
}

// Save persists a calendar source (create or update).
func (r *SQLiteCalendarSourceRepository) Save(ctx context.Context, source *domain.CalendarSource) error {
	query := `
		INSERT INTO calendar_sources (
			id, name, provider, directory, calendar_id, sync_enabled,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			provider = excluded.provider,
			directory = excluded.directory,
			calendar_id = excluded.calendar_id,
			sync_enabled = excluded.sync_enabled,
			updated_at = excluded.updated_at
	`
	enabled := 0
	if source.SyncEnabled() {
		enabled = 1
	}
	_, err := r.db.ExecContext(ctx, query,
		source.ID().String(),
		source.Name(),
		source.Provider().String(),
		source.Directory(),
		source.CalendarID(),
		enabled,
		source.CreatedAt().Format(time.RFC3339),
		source.UpdatedAt().Format(time.RFC3339),
	)
	return err
}

// FindByID loads one calendar source.
func (r *SQLiteCalendarSourceRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.CalendarSource, error) {
	query := `
		SELECT id, name, provider, directory, calendar_id, sync_enabled,
			   created_at, updated_at
		FROM calendar_sources
		WHERE id = ?
	`
	row := r.db.QueryRowContext(ctx, query, id.String())
	source, err := scanSource(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return source, err
}

// FindAll returns every registered calendar source.
func (r *SQLiteCalendarSourceRepository) FindAll(ctx context.Context) ([]*domain.CalendarSource, error) {
	query := `
		SELECT id, name, provider, directory, calendar_id, sync_enabled,
			   created_at, updated_at
		FROM calendar_sources
		ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*domain.CalendarSource
	for rows.Next() {
		source, err := scanSource(rows.Scan)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

// Delete removes a calendar source.
func (r *SQLiteCalendarSourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM calendar_sources WHERE id = ?`, id.String())
	return err
}

func scanSource(scan func(dest ...any) error) (*domain.CalendarSource, error) {
	var (
		idStr        string
		name         string
		provider     string
		directory    string
		calendarID   string
		syncEnabled  int
		createdAtStr string
		updatedAtStr string
	)
	if err := scan(&idStr, &name, &provider, &directory, &calendarID, &syncEnabled, &createdAtStr, &updatedAtStr); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	createdAt, err := time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, err
	}
	updatedAt, err := time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, err
	}

	return domain.RehydrateCalendarSource(
		id, name, domain.ProviderType(provider), directory, calendarID,
		syncEnabled != 0, createdAt, updatedAt,
	), nil
}
