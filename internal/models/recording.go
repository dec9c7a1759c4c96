package models

import (
	"time"

	"github.com/google/uuid"
)

// RecordingStatus tracks a session recording through finalization.
type RecordingStatus string

const (
	RecordingProcessing RecordingStatus = "PROCESSING"
	RecordingAvailable  RecordingStatus = "AVAILABLE"
	RecordingFailed     RecordingStatus = "FAILED"
)

// Recording is metadata for one recorded session stored in S3.
type Recording struct {
	ID              uuid.UUID       `json:"id"`
	SessionID       uuid.UUID       `json:"session_id"`
	Status          RecordingStatus `json:"status"`
	S3Key           string          `json:"s3_key,omitempty"`
	DurationSeconds int64           `json:"duration_seconds"`
	SizeBytes       int64           `json:"size_bytes"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
