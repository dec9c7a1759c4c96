package recordings

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillverse/live-backend/internal/models"
	"github.com/skillverse/live-backend/pkg/queue"
	"github.com/skillverse/live-backend/pkg/response"
)

// SessionSource verifies the session a recording belongs to.
type SessionSource interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// WebhookRequest is the body the media pipeline posts when a recording file
// is ready for ingestion.
type WebhookRequest struct {
	SessionID       string `json:"session_id" binding:"required,uuid"`
	SourceURL       string `json:"source_url" binding:"required,url"`
	DurationSeconds int64  `json:"duration_seconds"`
	SizeBytes       int64  `json:"size_bytes"`
}

// Webhook receives recording-ready callbacks, registers the recording in
// PROCESSING state and hands the heavy lifting to the worker queue.
type Webhook struct {
	repo     *Repository
	sessions SessionSource
	queue    *queue.Queue
	logger   *zap.Logger
}

// NewWebhook creates the recording-ready webhook handler.
func NewWebhook(repo *Repository, sessions SessionSource, q *queue.Queue, logger *zap.Logger) *Webhook {
	return &Webhook{repo: repo, sessions: sessions, queue: q, logger: logger}
}

// RecordingReady handles POST /webhooks/recording-ready.
func (w *Webhook) RecordingReady(c *gin.Context) {
	var req WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	sessionID, _ := uuid.Parse(req.SessionID)
	ctx := c.Request.Context()

	if _, err := w.sessions.Get(ctx, sessionID); err != nil {
		response.FromError(c, err)
		return
	}

	rec := &models.Recording{
		SessionID: sessionID,
		Status:    models.RecordingProcessing,
	}
	if err := w.repo.Create(ctx, rec); err != nil {
		response.Internal(c, "failed to register recording")
		return
	}

	err := w.queue.EnqueueRecordingFinalize(ctx, queue.RecordingFinalizePayload{
		RecordingID:     rec.ID,
		SessionID:       sessionID,
		SourceURL:       req.SourceURL,
		DurationSeconds: req.DurationSeconds,
		SizeBytes:       req.SizeBytes,
	})
	if err != nil {
		w.logger.Error("failed to enqueue recording finalize",
			zap.String("recording_id", rec.ID.String()), zap.Error(err))
		response.Internal(c, "failed to enqueue recording")
		return
	}
	response.Accepted(c, rec)
}
