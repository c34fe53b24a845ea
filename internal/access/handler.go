package access

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/workshop-access/internal/middleware"
	"github.com/aura-webinar/workshop-access/internal/models"
	"github.com/aura-webinar/workshop-access/internal/workshops"
	"github.com/aura-webinar/workshop-access/pkg/response"
)

// JoinRequest is the optional body for POST /workshops/:id/join.
type JoinRequest struct {
	Role models.MeetingRole `json:"role"`
}

// Handler exposes the join and clock endpoints.
type Handler struct {
	orchestrator *Orchestrator
	workshops    WorkshopReader
	logger       *zap.Logger
}

// NewHandler creates an access handler.
func NewHandler(orchestrator *Orchestrator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{orchestrator: orchestrator, workshops: orchestrator.workshops, logger: logger}
}

// StatusFor maps a denial reason to its HTTP status.
func StatusFor(reason models.DenialReason) int {
	switch reason {
	case models.DenyWorkshopNotFound:
		return http.StatusNotFound
	case models.DenyNotEnrolled:
		return http.StatusForbidden
	case models.DenyNotYetOpen, models.DenyEnded, models.DenyCancelled:
		return http.StatusConflict
	case models.DenyProviderUnavailable, models.DenyTemporarilyUnavailable:
		return http.StatusServiceUnavailable
	case models.DenyTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Join handles POST /workshops/:id/join.
func (h *Handler) Join(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid workshop id")
		return
	}
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Role != "" && req.Role != models.RoleHost && req.Role != models.RoleParticipant {
		response.BadRequest(c, "role must be host or participant")
		return
	}

	cred, denial := h.orchestrator.RequestJoin(c.Request.Context(), id, middleware.IdentityFrom(c), req.Role)
	if denial != nil {
		response.Fail(c, StatusFor(denial.Reason), denial.Error(), denial)
		return
	}
	response.OK(c, cred)
}

// Clock handles GET /workshops/:id/clock.
func (h *Handler) Clock(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid workshop id")
		return
	}
	w, err := h.workshops.GetByID(c.Request.Context(), id)
	if errors.Is(err, workshops.ErrNotFound) {
		response.NotFound(c, "workshop not found")
		return
	}
	if err != nil {
		h.logger.Error("load workshop for clock failed", zap.Error(err), zap.String("workshop_id", id.String()))
		response.Internal(c, "failed to load workshop")
		return
	}
	response.OK(c, h.orchestrator.Clock().Snapshot(w, h.orchestrator.now()))
}
