package participants

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/skillverse/live-backend/internal/middleware"
	"github.com/skillverse/live-backend/internal/models"
	"github.com/skillverse/live-backend/pkg/response"
)

// Handler handles participant HTTP endpoints.
type Handler struct {
	registry *Registry
}

// NewHandler creates a participant handler.
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// Join handles POST /live-sessions/:id/join.
func (h *Handler) Join(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	result, err := h.registry.Join(c.Request.Context(), sessionID, userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, result)
}

// Leave handles POST /live-sessions/:id/leave.
func (h *Handler) Leave(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	participant, err := h.registry.Leave(c.Request.Context(), sessionID, userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, participant)
}

// QualityRequest is the body for POST /live-sessions/:id/quality.
type QualityRequest struct {
	Quality string `json:"quality" binding:"required"`
}

// ReportQuality handles POST /live-sessions/:id/quality.
func (h *Handler) ReportQuality(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req QualityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	quality := models.ConnectionQuality(req.Quality)
	switch quality {
	case models.QualityExcellent, models.QualityGood, models.QualityFair, models.QualityPoor:
	default:
		response.BadRequest(c, "invalid quality value")
		return
	}
	if err := h.registry.ReportQuality(c.Request.Context(), sessionID, userID, quality); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"quality": req.Quality})
}

// ListActive handles GET /live-sessions/:id/participants.
func (h *Handler) ListActive(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	list, err := h.registry.ListActive(c.Request.Context(), sessionID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, list)
}
