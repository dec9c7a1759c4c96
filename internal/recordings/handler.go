package recordings

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/skillverse/live-backend/internal/errs"
	"github.com/skillverse/live-backend/internal/models"
	"github.com/skillverse/live-backend/pkg/response"
	"github.com/skillverse/live-backend/pkg/storage"
)

// Handler handles recording HTTP endpoints.
type Handler struct {
	repo    *Repository
	storage *storage.S3
}

// NewHandler creates a recording handler.
func NewHandler(repo *Repository, s3 *storage.S3) *Handler {
	return &Handler{repo: repo, storage: s3}
}

// ListBySession handles GET /live-sessions/:id/recordings.
func (h *Handler) ListBySession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	list, err := h.repo.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, list)
}

// Download handles GET /recordings/:id/download. It returns a short-lived
// presigned URL for an AVAILABLE recording.
func (h *Handler) Download(c *gin.Context) {
	if h.storage == nil {
		response.ServiceUnavailable(c, "recording downloads are not configured")
		return
	}
	recordingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	rec, err := h.repo.Get(c.Request.Context(), recordingID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if rec.Status != models.RecordingAvailable {
		response.FromError(c, errs.ErrInvalidState)
		return
	}

	url, err := h.storage.GeneratePresignedDownloadURL(c.Request.Context(), rec.S3Key, h.storage.PresignExpire())
	if err != nil {
		response.Internal(c, "failed to presign download")
		return
	}
	response.OK(c, gin.H{
		"recording_id": rec.ID,
		"download_url": url,
		"expires_in":   int(h.storage.PresignExpire().Seconds()),
	})
}
