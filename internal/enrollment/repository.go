package enrollment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/workshop-access/internal/models"
)

// Repository is the PostgreSQL Store. The (workshop_id, user_id) primary key makes Enroll atomic.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an enrollment repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// Enroll inserts the attendee unless the pair already exists. The FOR SHARE lock on the
// workshop row serializes the insert with a concurrent cancellation.
func (r *Repository) Enroll(ctx context.Context, workshopID, userID uuid.UUID, source models.EnrollmentSource) (bool, error) {
	const q = `WITH w AS (
			SELECT id FROM workshops WHERE id = $1 AND status <> 'cancelled' FOR SHARE
		)
		INSERT INTO attendees (workshop_id, user_id, source)
		SELECT w.id, $2, $3 FROM w
		ON CONFLICT (workshop_id, user_id) DO NOTHING`
	tag, err := r.pool.Exec(ctx, q, workshopID, userID, string(source))
	if err != nil {
		return false, classify("enroll", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	// Nothing inserted: either the pair exists or the workshop is missing or cancelled.
	var status string
	err = r.pool.QueryRow(ctx, `SELECT status FROM workshops WHERE id = $1`, workshopID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrWorkshopNotFound
	}
	if err != nil {
		return false, classify("enroll: workshop status", err)
	}
	if models.WorkshopStatus(status) == models.WorkshopCancelled {
		return false, ErrWorkshopClosed
	}
	return false, nil
}

// Unenroll deletes the attendee; removing a missing pair is not an error.
func (r *Repository) Unenroll(ctx context.Context, workshopID, userID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM attendees WHERE workshop_id = $1 AND user_id = $2`, workshopID, userID)
	if err != nil {
		return false, classify("unenroll", err)
	}
	return tag.RowsAffected() == 1, nil
}

// IsEnrolled is a primary-key lookup.
func (r *Repository) IsEnrolled(ctx context.Context, workshopID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM attendees WHERE workshop_id = $1 AND user_id = $2)`,
		workshopID, userID).Scan(&ok)
	if err != nil {
		return false, classify("is enrolled", err)
	}
	return ok, nil
}

// ListAttendees returns attendees in enrollment order.
func (r *Repository) ListAttendees(ctx context.Context, workshopID uuid.UUID) ([]models.Attendee, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT workshop_id, user_id, source, enrolled_at FROM attendees
		 WHERE workshop_id = $1 ORDER BY enrolled_at, user_id`, workshopID)
	if err != nil {
		return nil, classify("list attendees", err)
	}
	defer rows.Close()
	list := []models.Attendee{}
	for rows.Next() {
		var a models.Attendee
		var source string
		if err := rows.Scan(&a.WorkshopID, &a.UserID, &source, &a.EnrolledAt); err != nil {
			return nil, classify("list attendees: scan", err)
		}
		a.Source = models.EnrollmentSource(source)
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list attendees", err)
	}
	return list, nil
}
