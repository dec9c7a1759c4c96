package models

import (
	"time"

	"github.com/google/uuid"
)

// Course is a catalog entry owned by a creator. Only the narrow slice needed
// by live sessions is modelled here; catalog management proper lives elsewhere.
type Course struct {
	ID          uuid.UUID `json:"id"`
	CreatorID   uuid.UUID `json:"creator_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Enrollment links a learner to a course.
type Enrollment struct {
	ID        uuid.UUID `json:"id"`
	CourseID  uuid.UUID `json:"course_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
