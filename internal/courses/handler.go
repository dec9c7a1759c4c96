package courses

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/skillverse/live-backend/internal/middleware"
	"github.com/skillverse/live-backend/internal/models"
	"github.com/skillverse/live-backend/pkg/response"
)

// CreateRequest is the body for POST /courses.
type CreateRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

// Handler handles course HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates a course handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Create handles POST /courses (creator only).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	course := &models.Course{
		CreatorID:   userID,
		Title:       req.Title,
		Description: req.Description,
	}
	if err := h.repo.Create(c.Request.Context(), course); err != nil {
		response.Internal(c, "failed to create course")
		return
	}
	response.Created(c, course)
}

// List handles GET /courses.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list courses")
		return
	}
	response.OK(c, list)
}

// Enroll handles POST /courses/:id/enroll.
func (h *Handler) Enroll(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid course id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	if _, err := h.repo.GetByID(c.Request.Context(), courseID); err != nil {
		response.NotFound(c, "course not found")
		return
	}
	if err := h.repo.Enroll(c.Request.Context(), courseID, userID); err != nil {
		response.Internal(c, "failed to enroll")
		return
	}
	response.Created(c, gin.H{"course_id": courseID, "user_id": userID})
}
