package models

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionQuality is the reported link quality for a participant.
// Values are persisted as-is; do not rename.
type ConnectionQuality string

const (
	QualityExcellent ConnectionQuality = "EXCELLENT"
	QualityGood      ConnectionQuality = "GOOD"
	QualityFair      ConnectionQuality = "FAIR"
	QualityPoor      ConnectionQuality = "POOR"
)

// Participant is the durable record of one user's membership in one session.
// At most one row exists per (session, user); rejoins reuse and reset the row.
// Rows are never deleted, they are kept for attendance history.
type Participant struct {
	ID                uuid.UUID         `json:"id"`
	SessionID         uuid.UUID         `json:"session_id"`
	UserID            uuid.UUID         `json:"user_id"`
	JoinedAt          *time.Time        `json:"joined_at,omitempty"`
	LeftAt            *time.Time        `json:"left_at,omitempty"`
	DurationMinutes   *int              `json:"duration_minutes,omitempty"`
	Connected         bool              `json:"connected"`
	ConnectionQuality ConnectionQuality `json:"connection_quality"`
	CanSpeak          bool              `json:"can_speak"`
	CanVideo          bool              `json:"can_video"`
	IsMuted           bool              `json:"is_muted"`
	VideoDisabled     bool              `json:"video_disabled"`
}
