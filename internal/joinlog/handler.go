package joinlog

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/workshop-access/pkg/response"
)

// Handler handles GET /workshops/:id/join-audit.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a join log handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /workshops/:id/join-audit?limit=N (admin only).
func (h *Handler) List(c *gin.Context) {
	workshopID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid workshop id")
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.repo.ListByWorkshop(c.Request.Context(), workshopID, limit)
	if err != nil {
		h.logger.Error("list join audit failed", zap.Error(err), zap.String("workshop_id", workshopID.String()))
		response.Internal(c, "failed to list join audit")
		return
	}
	response.OK(c, gin.H{"entries": list})
}
