package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a live session.
// Values are persisted as-is; do not rename.
type SessionStatus string

const (
	StatusScheduled SessionStatus = "SCHEDULED"
	StatusLive      SessionStatus = "LIVE"
	StatusCompleted SessionStatus = "COMPLETED"
	StatusCancelled SessionStatus = "CANCELLED"
)

// Session is a scheduled or running live classroom session for a course.
type Session struct {
	ID                uuid.UUID     `json:"id"`
	CourseID          uuid.UUID     `json:"course_id"`
	CreatorID         uuid.UUID     `json:"creator_id"`
	Title             string        `json:"title"`
	Description       string        `json:"description"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           *time.Time    `json:"end_time,omitempty"`
	ScheduledDuration *int          `json:"scheduled_duration,omitempty"` // minutes
	RoomID            string        `json:"room_id"`                      // immutable, unique across sessions
	MaxParticipants   int           `json:"max_participants"`
	Status            SessionStatus `json:"status"`
	ActualStartTime   *time.Time    `json:"actual_start_time,omitempty"`
	ActualEndTime     *time.Time    `json:"actual_end_time,omitempty"`
	RecordingEnabled  bool          `json:"recording_enabled"`
	AutoRecord        bool          `json:"auto_record"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}
