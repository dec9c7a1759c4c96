package courses

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillverse/live-backend/internal/errs"
	"github.com/skillverse/live-backend/internal/models"
)

// Repository handles course and enrollment persistence. It backs the narrow
// directory interface the live session components consume.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a course repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new course.
func (r *Repository) Create(ctx context.Context, course *models.Course) error {
	const q = `INSERT INTO courses (creator_id, title, description)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, course.CreatorID, course.Title, course.Description).
		Scan(&course.ID, &course.CreatedAt, &course.UpdatedAt)
}

// GetByID returns a course by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	const q = `SELECT id, creator_id, title, description, created_at, updated_at
		FROM courses WHERE id = $1`
	var course models.Course
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&course.ID, &course.CreatorID, &course.Title, &course.Description, &course.CreatedAt, &course.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// List returns all courses, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Course, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, creator_id, title, description, created_at, updated_at
		 FROM courses ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Course
	for rows.Next() {
		var course models.Course
		if err := rows.Scan(&course.ID, &course.CreatorID, &course.Title, &course.Description, &course.CreatedAt, &course.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, course)
	}
	return list, rows.Err()
}

// Enroll adds a learner to a course. Enrolling twice is a no-op.
func (r *Repository) Enroll(ctx context.Context, courseID, userID uuid.UUID) error {
	const q = `INSERT INTO enrollments (course_id, user_id) VALUES ($1, $2)
		ON CONFLICT (course_id, user_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, courseID, userID)
	return err
}

// IsEnrolled reports whether the user is enrolled in the course.
func (r *Repository) IsEnrolled(ctx context.Context, courseID, userID uuid.UUID) (bool, error) {
	const q = `SELECT 1 FROM enrollments WHERE course_id = $1 AND user_id = $2`
	var one int
	err := r.pool.QueryRow(ctx, q, courseID, userID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CourseOwner returns the creator of the course.
func (r *Repository) CourseOwner(ctx context.Context, courseID uuid.UUID) (uuid.UUID, error) {
	const q = `SELECT creator_id FROM courses WHERE id = $1`
	var creatorID uuid.UUID
	err := r.pool.QueryRow(ctx, q, courseID).Scan(&creatorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, errs.ErrNotFound
	}
	if err != nil {
		return uuid.Nil, err
	}
	return creatorID, nil
}
