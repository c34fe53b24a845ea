// Package joinlog stores the outcome of every join request.
package joinlog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/workshop-access/internal/models"
)

// DefaultLimit caps ListByWorkshop when no limit is given.
const DefaultLimit = 200

// Repository handles join_audit.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a join log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert writes one decision. jobID makes redelivered queue jobs a no-op.
func (r *Repository) Insert(ctx context.Context, jobID string, e models.JoinAuditEntry) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO join_audit (job_id, workshop_id, user_id, outcome, reason, role, provider, decided_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (job_id) DO NOTHING`,
		jobID, e.WorkshopID, e.UserID, string(e.Outcome), string(e.Reason), string(e.Role), string(e.Provider), e.DecidedAt)
	if err != nil {
		return false, fmt.Errorf("insert join audit: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByWorkshop returns the most recent decisions for a workshop, newest first.
func (r *Repository) ListByWorkshop(ctx context.Context, workshopID uuid.UUID, limit int) ([]models.JoinAuditEntry, error) {
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, workshop_id, user_id, outcome, reason, role, provider, decided_at
		 FROM join_audit WHERE workshop_id = $1 ORDER BY decided_at DESC, id DESC LIMIT $2`,
		workshopID, limit)
	if err != nil {
		return nil, fmt.Errorf("list join audit: %w", err)
	}
	defer rows.Close()
	list := []models.JoinAuditEntry{}
	for rows.Next() {
		var e models.JoinAuditEntry
		var outcome, reason, role, provider string
		if err := rows.Scan(&e.ID, &e.WorkshopID, &e.UserID, &outcome, &reason, &role, &provider, &e.DecidedAt); err != nil {
			return nil, fmt.Errorf("scan join audit: %w", err)
		}
		e.Outcome = models.JoinOutcome(outcome)
		e.Reason = models.DenialReason(reason)
		e.Role = models.MeetingRole(role)
		e.Provider = models.ProviderKind(provider)
		list = append(list, e)
	}
	return list, rows.Err()
}
