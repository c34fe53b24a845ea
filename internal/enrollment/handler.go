package enrollment

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/workshop-access/internal/middleware"
	"github.com/aura-webinar/workshop-access/internal/models"
	"github.com/aura-webinar/workshop-access/pkg/queue"
	"github.com/aura-webinar/workshop-access/pkg/response"
	"github.com/aura-webinar/workshop-access/pkg/retry"
	"github.com/aura-webinar/workshop-access/pkg/storage"
)

// RosterQueue accepts roster export jobs.
type RosterQueue interface {
	EnqueueRosterExport(ctx context.Context, payload queue.RosterExportPayload) error
}

// RosterSigner signs download URLs for roster exports.
type RosterSigner interface {
	PresignRosterDownload(ctx context.Context, key string) (string, error)
	PresignExpire() time.Duration
}

// EnrollRequest is the optional body for PUT /workshops/:id/attendees/:userId.
type EnrollRequest struct {
	Source models.EnrollmentSource `json:"source"`
}

// Handler handles attendee endpoints.
type Handler struct {
	store        Store
	retryBackoff time.Duration
	exports      RosterQueue
	signer       RosterSigner
	logger       *zap.Logger
}

// NewHandler creates an enrollment handler.
func NewHandler(store Store, retryBackoff time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, retryBackoff: retryBackoff, logger: logger}
}

// EnableRosterExport turns on POST /workshops/:id/attendees/export.
func (h *Handler) EnableRosterExport(q RosterQueue, s RosterSigner) {
	h.exports, h.signer = q, s
}

// SelfEnroll handles POST /workshops/:id/enroll for the caller.
func (h *Handler) SelfEnroll(c *gin.Context) {
	workshopID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid workshop id")
		return
	}
	h.enroll(c, workshopID, middleware.IdentityFrom(c).UserID, models.SourceSelf)
}

// Put handles PUT /workshops/:id/attendees/:userId (admin only).
func (h *Handler) Put(c *gin.Context) {
	workshopID, userID, ok := parsePair(c)
	if !ok {
		return
	}
	var req EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Source == "" {
		req.Source = models.SourceAdmin
	}
	if !req.Source.Valid() {
		response.BadRequest(c, "source must be one of purchase, admin, self, owner")
		return
	}
	h.enroll(c, workshopID, userID, req.Source)
}

func (h *Handler) enroll(c *gin.Context, workshopID, userID uuid.UUID, source models.EnrollmentSource) {
	created, err := retry.Once(c.Request.Context(), h.retryBackoff, IsTransient, func(ctx context.Context) (bool, error) {
		return h.store.Enroll(ctx, workshopID, userID, source)
	})
	if err != nil {
		h.storeError(c, "enroll", err, workshopID)
		return
	}
	a := gin.H{"workshop_id": workshopID, "user_id": userID, "enrolled": true, "created": created}
	if created {
		h.logger.Info("attendee enrolled", zap.String("workshop_id", workshopID.String()),
			zap.String("user_id", userID.String()), zap.String("source", string(source)))
		response.Created(c, a)
		return
	}
	response.OK(c, a)
}

// Delete handles DELETE /workshops/:id/attendees/:userId (admin only).
func (h *Handler) Delete(c *gin.Context) {
	workshopID, userID, ok := parsePair(c)
	if !ok {
		return
	}
	removed, err := retry.Once(c.Request.Context(), h.retryBackoff, IsTransient, func(ctx context.Context) (bool, error) {
		return h.store.Unenroll(ctx, workshopID, userID)
	})
	if err != nil {
		h.storeError(c, "unenroll", err, workshopID)
		return
	}
	if removed {
		h.logger.Info("attendee removed", zap.String("workshop_id", workshopID.String()), zap.String("user_id", userID.String()))
	}
	response.OK(c, gin.H{"workshop_id": workshopID, "user_id": userID, "removed": removed})
}

// Get handles GET /workshops/:id/attendees/:userId (admin only).
func (h *Handler) Get(c *gin.Context) {
	workshopID, userID, ok := parsePair(c)
	if !ok {
		return
	}
	enrolled, err := retry.Once(c.Request.Context(), h.retryBackoff, IsTransient, func(ctx context.Context) (bool, error) {
		return h.store.IsEnrolled(ctx, workshopID, userID)
	})
	if err != nil {
		h.storeError(c, "is enrolled", err, workshopID)
		return
	}
	response.OK(c, gin.H{"workshop_id": workshopID, "user_id": userID, "enrolled": enrolled})
}

// List handles GET /workshops/:id/attendees (admin only).
func (h *Handler) List(c *gin.Context) {
	workshopID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid workshop id")
		return
	}
	list, err := retry.Once(c.Request.Context(), h.retryBackoff, IsTransient, func(ctx context.Context) ([]models.Attendee, error) {
		return h.store.ListAttendees(ctx, workshopID)
	})
	if err != nil {
		h.storeError(c, "list attendees", err, workshopID)
		return
	}
	response.OK(c, gin.H{"attendees": list, "count": len(list)})
}

// Export handles POST /workshops/:id/attendees/export (admin only). The CSV is written by the
// worker; the returned URL works once the upload has finished.
func (h *Handler) Export(c *gin.Context) {
	if h.exports == nil || h.signer == nil {
		response.ServiceUnavailable(c, "roster export not configured")
		return
	}
	workshopID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid workshop id")
		return
	}
	ctx := c.Request.Context()
	key := storage.RosterKey(workshopID.String(), uuid.NewString())
	url, err := h.signer.PresignRosterDownload(ctx, key)
	if err != nil {
		h.logger.Error("presign roster download failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to prepare export")
		return
	}
	payload := queue.RosterExportPayload{
		WorkshopID:  workshopID,
		RequestedBy: middleware.IdentityFrom(c).UserID,
		Key:         key,
	}
	if err := h.exports.EnqueueRosterExport(ctx, payload); err != nil {
		h.logger.Error("enqueue roster export failed", zap.Error(err), zap.String("workshop_id", workshopID.String()))
		response.ServiceUnavailable(c, "failed to queue export")
		return
	}
	response.Accepted(c, gin.H{
		"key":          key,
		"download_url": url,
		"expires_at":   time.Now().Add(h.signer.PresignExpire()).UTC(),
	})
}

func (h *Handler) storeError(c *gin.Context, op string, err error, workshopID uuid.UUID) {
	switch {
	case errors.Is(err, ErrWorkshopNotFound):
		response.NotFound(c, "workshop not found")
	case errors.Is(err, ErrWorkshopClosed):
		response.Conflict(c, "workshop is cancelled")
	case IsTransient(err):
		h.logger.Warn(op+" unavailable", zap.Error(err), zap.String("workshop_id", workshopID.String()))
		response.ServiceUnavailable(c, "attendee store temporarily unavailable")
	default:
		h.logger.Error(op+" failed", zap.Error(err), zap.String("workshop_id", workshopID.String()))
		response.Fail(c, http.StatusInternalServerError, "attendee store error", nil)
	}
}

func parsePair(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	workshopID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid workshop id")
		return uuid.Nil, uuid.Nil, false
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return uuid.Nil, uuid.Nil, false
	}
	return workshopID, userID, true
}
