package workshops

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/workshop-access/internal/middleware"
	"github.com/aura-webinar/workshop-access/internal/models"
	"github.com/aura-webinar/workshop-access/pkg/response"
)

// CreateRequest is the body for POST /workshops.
type CreateRequest struct {
	Title           string  `json:"title" binding:"required"`
	StartsAt        string  `json:"starts_at" binding:"required"`
	DurationMinutes int     `json:"duration_minutes"`
	EndsAt          *string `json:"ends_at"`
	Provider        string  `json:"provider" binding:"required"`
	RoomID          string  `json:"room_id" binding:"required"`
}

// Handler handles workshop HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a workshop handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// Create handles POST /workshops (admin only). The caller becomes the owner and first attendee.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		response.BadRequest(c, "invalid starts_at")
		return
	}
	var endsAt *time.Time
	if req.EndsAt != nil {
		t, err := time.Parse(time.RFC3339, *req.EndsAt)
		if err != nil || !t.After(startsAt) {
			response.BadRequest(c, "invalid ends_at")
			return
		}
		endsAt = &t
	}
	if req.DurationMinutes < 0 {
		response.BadRequest(c, "duration_minutes must not be negative")
		return
	}
	provider := models.ProviderKind(req.Provider)
	if !provider.Valid() {
		response.BadRequest(c, "provider must be sdk or room")
		return
	}

	ident := middleware.IdentityFrom(c)
	w := &models.Workshop{
		Title:           req.Title,
		StartsAt:        startsAt,
		DurationMinutes: req.DurationMinutes,
		EndsAt:          endsAt,
		Provider:        provider,
		RoomID:          req.RoomID,
		CreatedBy:       ident.UserID,
	}
	if err := h.repo.Create(c.Request.Context(), w); err != nil {
		h.logger.Error("create workshop failed", zap.Error(err))
		response.Internal(c, "failed to create workshop")
		return
	}
	response.Created(c, w)
}

// GetByID handles GET /workshops/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid workshop id")
		return
	}
	w, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "workshop not found")
		return
	}
	if err != nil {
		h.logger.Error("get workshop failed", zap.Error(err), zap.String("workshop_id", id.String()))
		response.Internal(c, "failed to load workshop")
		return
	}
	response.OK(c, w)
}

// List handles GET /workshops?limit=N.
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.repo.ListUpcoming(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list workshops failed", zap.Error(err))
		response.Internal(c, "failed to list workshops")
		return
	}
	response.OK(c, gin.H{"workshops": list})
}

// Cancel handles POST /workshops/:id/cancel (admin only). Attendees are removed with the cancellation.
func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid workshop id")
		return
	}
	removed, err := h.repo.Cancel(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "workshop not found")
		return
	}
	if err != nil {
		h.logger.Error("cancel workshop failed", zap.Error(err), zap.String("workshop_id", id.String()))
		response.Internal(c, "failed to cancel workshop")
		return
	}
	h.logger.Info("workshop cancelled", zap.String("workshop_id", id.String()), zap.Int64("attendees_removed", removed))
	response.OK(c, gin.H{"status": models.WorkshopCancelled, "attendees_removed": removed})
}
