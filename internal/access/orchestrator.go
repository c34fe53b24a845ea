// Package access decides whether a user may join a workshop right now and, if so,
// returns a credential from the workshop's provider. Every refusal is a models.Denial.
package access

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/workshop-access/config"
	"github.com/aura-webinar/workshop-access/internal/enrollment"
	"github.com/aura-webinar/workshop-access/internal/models"
	"github.com/aura-webinar/workshop-access/internal/session"
	"github.com/aura-webinar/workshop-access/internal/workshops"
	"github.com/aura-webinar/workshop-access/pkg/retry"
)

// WorkshopReader loads a workshop, returning workshops.ErrNotFound when it does not exist.
type WorkshopReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Workshop, error)
}

// CredentialIssuer turns an authorized join into a credential.
type CredentialIssuer interface {
	Issue(ctx context.Context, w *models.Workshop, ident models.Identity, requested models.MeetingRole) (*models.JoinCredential, *models.Denial)
}

// AuditSink receives every join decision. Publishing is best effort.
type AuditSink interface {
	PublishJoinAudit(ctx context.Context, entry models.JoinAuditEntry) error
}

const auditPublishTimeout = 2 * time.Second

// Orchestrator is the single entry point for join requests. It never writes workshop state.
type Orchestrator struct {
	workshops    WorkshopReader
	store        enrollment.Store
	issuer       CredentialIssuer
	audit        AuditSink
	clock        session.Clock
	timeout      time.Duration
	retryBackoff time.Duration
	now          func() time.Time
	logger       *zap.Logger
}

// NewOrchestrator wires the join path. audit may be nil.
func NewOrchestrator(workshops WorkshopReader, store enrollment.Store, issuer CredentialIssuer, audit AuditSink, cfg config.SessionConfig, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		workshops:    workshops,
		store:        store,
		issuer:       issuer,
		audit:        audit,
		clock:        session.NewClock(cfg.JoinLead, cfg.DefaultDuration),
		timeout:      cfg.JoinTimeout,
		retryBackoff: cfg.RetryBackoff,
		now:          time.Now,
		logger:       logger,
	}
}

// Clock returns the session clock used for phase decisions.
func (o *Orchestrator) Clock() session.Clock { return o.clock }

// RequestJoin checks, in order, that the workshop exists, that its join window is open,
// and that the caller is enrolled (administrators skip this), then asks the issuer for a
// credential. The whole request is bounded by the join timeout.
func (o *Orchestrator) RequestJoin(ctx context.Context, workshopID uuid.UUID, ident models.Identity, requested models.MeetingRole) (*models.JoinCredential, *models.Denial) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	w, cred, denial := o.decide(ctx, workshopID, ident, requested)
	if denial == nil && ctx.Err() != nil {
		// The caller has given up; a credential minted after the deadline is dropped.
		cred, denial = nil, timeoutDenial()
	}
	o.record(ctx, workshopID, ident, w, cred, denial)
	return cred, denial
}

func (o *Orchestrator) decide(ctx context.Context, workshopID uuid.UUID, ident models.Identity, requested models.MeetingRole) (*models.Workshop, *models.JoinCredential, *models.Denial) {
	w, err := o.workshops.GetByID(ctx, workshopID)
	if err != nil {
		switch {
		case errors.Is(err, workshops.ErrNotFound):
			return nil, nil, models.Deny(models.DenyWorkshopNotFound, "workshop not found")
		case ctx.Err() != nil:
			return nil, nil, timeoutDenial()
		default:
			o.logger.Warn("load workshop failed", zap.Error(err), zap.String("workshop_id", workshopID.String()))
			return nil, nil, models.Deny(models.DenyTemporarilyUnavailable, "workshop could not be loaded")
		}
	}

	if d := o.phaseDenial(w, o.now()); d != nil {
		return w, nil, d
	}

	if !ident.IsAdmin {
		enrolled, err := retry.Once(ctx, o.retryBackoff, enrollment.IsTransient, func(ctx context.Context) (bool, error) {
			return o.store.IsEnrolled(ctx, w.ID, ident.UserID)
		})
		switch {
		case err != nil && ctx.Err() != nil:
			return w, nil, timeoutDenial()
		case enrollment.IsTransient(err):
			o.logger.Warn("enrollment check unavailable", zap.Error(err), zap.String("workshop_id", w.ID.String()))
			return w, nil, models.Deny(models.DenyTemporarilyUnavailable, "enrollment could not be verified, try again")
		case err != nil:
			o.logger.Error("enrollment check failed", zap.Error(err), zap.String("workshop_id", w.ID.String()))
			return w, nil, models.Deny(models.DenyInternal, "enrollment could not be verified")
		case !enrolled:
			return w, nil, models.Deny(models.DenyNotEnrolled, "you are not enrolled in this workshop")
		}
	}

	cred, denial := o.issuer.Issue(ctx, w, ident, requested)
	return w, cred, denial
}

func (o *Orchestrator) phaseDenial(w *models.Workshop, now time.Time) *models.Denial {
	switch o.clock.Phase(w, now) {
	case session.PhaseCancelled:
		return models.Deny(models.DenyCancelled, "workshop was cancelled")
	case session.PhaseNotOpen:
		opensAt := o.clock.OpensAt(w)
		d := models.Deny(models.DenyNotYetOpen, "joining opens at "+opensAt.UTC().Format(time.RFC3339))
		d.OpensAt = &opensAt
		return d
	case session.PhaseEnded:
		return models.Deny(models.DenyEnded, "workshop has ended")
	}
	return nil
}

// record logs the decision and publishes it for the audit log.
func (o *Orchestrator) record(ctx context.Context, workshopID uuid.UUID, ident models.Identity, w *models.Workshop, cred *models.JoinCredential, denial *models.Denial) {
	entry := models.JoinAuditEntry{
		WorkshopID: workshopID,
		UserID:     ident.UserID,
		Outcome:    models.JoinGranted,
		DecidedAt:  o.now(),
	}
	if w != nil {
		entry.Provider = w.Provider
	}
	fields := []zap.Field{
		zap.String("workshop_id", workshopID.String()),
		zap.String("user_id", ident.UserID.String()),
		zap.Bool("admin", ident.IsAdmin),
	}
	if denial != nil {
		entry.Outcome = models.JoinDenied
		entry.Reason = denial.Reason
		o.logger.Info("join denied", append(fields, zap.String("reason", string(denial.Reason)))...)
	} else {
		entry.Role = cred.Role
		o.logger.Info("join granted", append(fields, zap.String("role", string(cred.Role)), zap.String("provider", string(cred.Provider)))...)
	}

	if o.audit == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditPublishTimeout)
	defer cancel()
	if err := o.audit.PublishJoinAudit(pubCtx, entry); err != nil {
		o.logger.Warn("publish join audit failed", zap.Error(err), zap.String("workshop_id", workshopID.String()))
	}
}

func timeoutDenial() *models.Denial {
	return models.Deny(models.DenyTimeout, "join request timed out")
}
