package control

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/skillverse/live-backend/internal/middleware"
	"github.com/skillverse/live-backend/pkg/response"
)

// Request is the body for POST /live-sessions/control.
type Request struct {
	SessionID    string `json:"session_id" binding:"required,uuid"`
	TargetUserID string `json:"target_user_id" binding:"required,uuid"`
	Action       string `json:"action" binding:"required"`
	Reason       string `json:"reason"`
}

// Handler handles moderator control HTTP endpoints.
type Handler struct {
	dispatcher *Dispatcher
}

// NewHandler creates a control handler.
func NewHandler(dispatcher *Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

// Dispatch handles POST /live-sessions/control.
func (h *Handler) Dispatch(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	action, ok := ParseAction(req.Action)
	if !ok {
		response.BadRequest(c, "unknown action: "+req.Action)
		return
	}
	sessionID, _ := uuid.Parse(req.SessionID)
	targetUserID, _ := uuid.Parse(req.TargetUserID)
	requesterID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	participant, err := h.dispatcher.Dispatch(c.Request.Context(), sessionID, requesterID, targetUserID, action, req.Reason)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, participant)
}
