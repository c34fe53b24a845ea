package provider

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/workshop-access/internal/middleware"
	"github.com/aura-webinar/workshop-access/pkg/response"
)

// Handler exposes room reference redemption.
type Handler struct {
	room   *RoomProvider
	logger *zap.Logger
}

// NewHandler creates a provider handler. room may be nil when the room provider is disabled.
func NewHandler(room *RoomProvider, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{room: room, logger: logger}
}

// Redeem handles POST /join-refs/:ref/redeem. The reference is consumed on success.
func (h *Handler) Redeem(c *gin.Context) {
	if h.room == nil {
		response.ServiceUnavailable(c, "room provider not configured")
		return
	}
	ident := middleware.IdentityFrom(c)
	b, err := h.room.Redeem(c.Request.Context(), c.Param("ref"), ident.UserID)
	if errors.Is(err, ErrReferenceNotFound) {
		response.NotFound(c, "invalid, expired or used join reference")
		return
	}
	if err != nil {
		h.logger.Error("redeem join reference failed", zap.Error(err), zap.String("user_id", ident.UserID.String()))
		response.ServiceUnavailable(c, "failed to redeem join reference")
		return
	}
	response.OK(c, b)
}
