package sessions

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/skillverse/live-backend/internal/middleware"
	"github.com/skillverse/live-backend/internal/models"
	"github.com/skillverse/live-backend/pkg/response"
)

// CreateRequest is the body for POST /live-sessions.
type CreateRequest struct {
	CourseID          string    `json:"course_id" binding:"required,uuid"`
	Title             string    `json:"title" binding:"required"`
	Description       string    `json:"description"`
	StartTime         time.Time `json:"start_time" binding:"required"`
	ScheduledDuration *int      `json:"scheduled_duration"`
	MaxParticipants   *int      `json:"max_participants"`
	RecordingEnabled  bool      `json:"recording_enabled"`
	AutoRecord        bool      `json:"auto_record"`
}

// Handler handles session lifecycle HTTP endpoints.
type Handler struct {
	manager *Manager
}

// NewHandler creates a session handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// Create handles POST /live-sessions (creator only).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	courseID, _ := uuid.Parse(req.CourseID)

	session, err := h.manager.Create(c.Request.Context(), userID, CreateParams{
		CourseID:          courseID,
		Title:             req.Title,
		Description:       req.Description,
		StartTime:         req.StartTime,
		ScheduledDuration: req.ScheduledDuration,
		MaxParticipants:   req.MaxParticipants,
		RecordingEnabled:  req.RecordingEnabled,
		AutoRecord:        req.AutoRecord,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, session)
}

// Start handles POST /live-sessions/:id/start.
func (h *Handler) Start(c *gin.Context) {
	h.transition(c, h.manager.Start)
}

// End handles POST /live-sessions/:id/end.
func (h *Handler) End(c *gin.Context) {
	h.transition(c, h.manager.End)
}

// Cancel handles POST /live-sessions/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	h.transition(c, h.manager.Cancel)
}

func (h *Handler) transition(c *gin.Context,
	apply func(ctx context.Context, sessionID, requesterID uuid.UUID) (*models.Session, error)) {

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	session, err := apply(c.Request.Context(), sessionID, userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, session)
}

// Get handles GET /live-sessions/:id.
func (h *Handler) Get(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	session, err := h.manager.Get(c.Request.Context(), sessionID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, session)
}

// List handles GET /live-sessions with optional filters:
// ?course_id=<uuid> for a course's sessions, ?status=live for all sessions in
// progress, ?upcoming=1 for the caller's scheduled sessions.
func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()

	if raw := c.Query("course_id"); raw != "" {
		courseID, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid course id")
			return
		}
		list, err := h.manager.ListByCourse(ctx, courseID)
		if err != nil {
			response.FromError(c, err)
			return
		}
		response.OK(c, list)
		return
	}

	if c.Query("status") == "live" {
		list, err := h.manager.ListLive(ctx)
		if err != nil {
			response.FromError(c, err)
			return
		}
		response.OK(c, list)
		return
	}

	if c.Query("upcoming") == "1" {
		userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		list, err := h.manager.ListUpcoming(ctx, userID)
		if err != nil {
			response.FromError(c, err)
			return
		}
		response.OK(c, list)
		return
	}

	response.BadRequest(c, "one of course_id, status=live or upcoming=1 is required")
}
