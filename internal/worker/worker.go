package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/skillverse/live-backend/internal/recordings"
	"github.com/skillverse/live-backend/pkg/queue"
	"github.com/skillverse/live-backend/pkg/storage"
)

// Worker consumes background jobs. Right now that is recording finalization:
// pull the raw file from the media pipeline, park it in S3 and flip the
// recording to AVAILABLE.
type Worker struct {
	queue      *queue.Queue
	recordings *recordings.Repository
	storage    *storage.S3
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a worker.
func New(q *queue.Queue, repo *recordings.Repository, s3 *storage.S3, logger *zap.Logger) *Worker {
	return &Worker{
		queue:      q,
		recordings: repo,
		storage:    s3,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		logger:     logger,
	}
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started")
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("worker stopped")
				return
			}
			w.logger.Error("dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}
		w.handle(ctx, job)
	}
}

func (w *Worker) handle(ctx context.Context, job *queue.Job) {
	switch job.Type {
	case queue.JobTypeRecordingFinalize:
		w.finalizeRecording(ctx, job)
	default:
		w.logger.Warn("unknown job type", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	}
}

func (w *Worker) finalizeRecording(ctx context.Context, job *queue.Job) {
	var payload queue.RecordingFinalizePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		w.logger.Error("invalid finalize payload", zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	err := w.ingest(ctx, payload)
	if err == nil {
		w.logger.Info("recording finalized",
			zap.String("recording_id", payload.RecordingID.String()),
			zap.String("session_id", payload.SessionID.String()))
		return
	}

	w.logger.Error("recording finalize failed",
		zap.String("recording_id", payload.RecordingID.String()),
		zap.Int("attempt", job.Attempt), zap.Error(err))

	if job.Attempt+1 >= queue.MaxRetries {
		if markErr := w.recordings.MarkFailed(ctx, payload.RecordingID); markErr != nil {
			w.logger.Error("failed to mark recording failed",
				zap.String("recording_id", payload.RecordingID.String()), zap.Error(markErr))
		}
	}
	if retryErr := w.queue.Retry(ctx, job); retryErr != nil {
		w.logger.Error("retry failed", zap.String("job_id", job.ID), zap.Error(retryErr))
	}
}

func (w *Worker) ingest(ctx context.Context, payload queue.RecordingFinalizePayload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, payload.SourceURL, nil)
	if err != nil {
		return fmt.Errorf("build source request: %w", err)
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch source: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch source: unexpected status %d", resp.StatusCode)
	}

	key := storage.RecordingKey(payload.SessionID.String(), payload.RecordingID.String())
	if err := w.storage.Upload(ctx, key, "video/mp4", resp.Body); err != nil {
		return fmt.Errorf("upload recording: %w", err)
	}

	if err := w.recordings.MarkAvailable(ctx, payload.RecordingID, key, payload.DurationSeconds, payload.SizeBytes); err != nil {
		return fmt.Errorf("mark available: %w", err)
	}
	return nil
}
