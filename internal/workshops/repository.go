package workshops

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/workshop-access/internal/models"
)

// ErrNotFound is returned when a workshop does not exist.
var ErrNotFound = errors.New("workshop not found")

const selectColumns = `SELECT id, title, starts_at, duration_minutes, ends_at, status, provider, room_id, created_by, created_at, updated_at FROM workshops`

// Repository handles workshop persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a workshop repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a workshop and enrolls its owner in the same transaction.
func (r *Repository) Create(ctx context.Context, w *models.Workshop) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO workshops (title, starts_at, duration_minutes, ends_at, provider, room_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, status, created_at, updated_at`
	var status string
	err = tx.QueryRow(ctx, q, w.Title, w.StartsAt, w.DurationMinutes, w.EndsAt, string(w.Provider), w.RoomID, w.CreatedBy).
		Scan(&w.ID, &status, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert workshop: %w", err)
	}
	w.Status = models.WorkshopStatus(status)

	const enrollOwner = `INSERT INTO attendees (workshop_id, user_id, source) VALUES ($1, $2, $3)
		ON CONFLICT (workshop_id, user_id) DO NOTHING`
	if _, err := tx.Exec(ctx, enrollOwner, w.ID, w.CreatedBy, string(models.SourceOwner)); err != nil {
		return fmt.Errorf("enroll owner: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetByID returns a workshop by ID, or ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Workshop, error) {
	w, err := scanWorkshop(r.pool.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workshop: %w", err)
	}
	return w, nil
}

// ListUpcoming returns workshops that have not been cancelled, ordered by start.
func (r *Repository) ListUpcoming(ctx context.Context, limit int) ([]models.Workshop, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, selectColumns+` WHERE status <> 'cancelled' ORDER BY starts_at LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list workshops: %w", err)
	}
	defer rows.Close()
	list := []models.Workshop{}
	for rows.Next() {
		w, err := scanWorkshop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workshop: %w", err)
		}
		list = append(list, *w)
	}
	return list, rows.Err()
}

// Cancel marks the workshop cancelled and removes its attendees in one transaction.
// It returns the number of attendees removed. Cancelling twice is a no-op.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM workshops WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lock workshop: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE workshops SET status = 'cancelled', updated_at = NOW() WHERE id = $1`, id); err != nil {
		return 0, fmt.Errorf("cancel workshop: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM attendees WHERE workshop_id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("remove attendees: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanWorkshop(row pgx.Row) (*models.Workshop, error) {
	var w models.Workshop
	var status, provider string
	err := row.Scan(&w.ID, &w.Title, &w.StartsAt, &w.DurationMinutes, &w.EndsAt, &status, &provider, &w.RoomID, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	w.Status = models.WorkshopStatus(status)
	w.Provider = models.ProviderKind(provider)
	return &w, nil
}
