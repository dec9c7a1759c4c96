package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillverse/live-backend/internal/errs"
	"github.com/skillverse/live-backend/internal/models"
)

const sessionColumns = `id, course_id, creator_id, title, description, start_time, end_time,
	scheduled_duration, room_id, max_participants, status, actual_start_time, actual_end_time,
	recording_enabled, auto_record, created_at, updated_at`

// Repository handles live session persistence. Lifecycle transitions run in a
// single transaction together with participant reconciliation, so a failed
// transition is never half-applied.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a session repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var s models.Session
	err := row.Scan(&s.ID, &s.CourseID, &s.CreatorID, &s.Title, &s.Description, &s.StartTime, &s.EndTime,
		&s.ScheduledDuration, &s.RoomID, &s.MaxParticipants, &s.Status, &s.ActualStartTime, &s.ActualEndTime,
		&s.RecordingEnabled, &s.AutoRecord, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a new session.
func (r *Repository) Create(ctx context.Context, s *models.Session) error {
	const q = `INSERT INTO live_sessions (course_id, creator_id, title, description, start_time, end_time,
		scheduled_duration, room_id, max_participants, status, recording_enabled, auto_record)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, s.CourseID, s.CreatorID, s.Title, s.Description, s.StartTime, s.EndTime,
		s.ScheduledDuration, s.RoomID, s.MaxParticipants, string(s.Status), s.RecordingEnabled, s.AutoRecord).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// Get returns a session by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM live_sessions WHERE id = $1`, id))
}

// Start flips a SCHEDULED session to LIVE and connects every pre-admitted
// participant that has no join timestamp yet. Returns ErrInvalidState for any
// other current status.
func (r *Repository) Start(ctx context.Context, id uuid.UUID, now time.Time) (*models.Session, error) {
	return r.transition(ctx, id, models.StatusScheduled, func(tx pgx.Tx) (*models.Session, error) {
		session, err := scanSession(tx.QueryRow(ctx,
			`UPDATE live_sessions SET status = $2, actual_start_time = $3, updated_at = $3
			 WHERE id = $1 RETURNING `+sessionColumns, id, string(models.StatusLive), now))
		if err != nil {
			return nil, err
		}
		_, err = tx.Exec(ctx,
			`UPDATE live_participants SET connected = TRUE, joined_at = $2
			 WHERE session_id = $1 AND joined_at IS NULL`, id, now)
		if err != nil {
			return nil, err
		}
		return session, nil
	})
}

// End flips a LIVE session to COMPLETED and disconnects every connected
// participant, computing its duration in minutes between join and leave.
func (r *Repository) End(ctx context.Context, id uuid.UUID, now time.Time) (*models.Session, error) {
	return r.transition(ctx, id, models.StatusLive, func(tx pgx.Tx) (*models.Session, error) {
		session, err := scanSession(tx.QueryRow(ctx,
			`UPDATE live_sessions SET status = $2, actual_end_time = $3, updated_at = $3
			 WHERE id = $1 RETURNING `+sessionColumns, id, string(models.StatusCompleted), now))
		if err != nil {
			return nil, err
		}
		_, err = tx.Exec(ctx,
			`UPDATE live_participants SET connected = FALSE, left_at = $2,
			   duration_minutes = GREATEST(0, FLOOR(EXTRACT(EPOCH FROM ($2 - joined_at)) / 60))::INT
			 WHERE session_id = $1 AND connected = TRUE AND joined_at IS NOT NULL`, id, now)
		if err != nil {
			return nil, err
		}
		return session, nil
	})
}

// Cancel flips a SCHEDULED session to CANCELLED.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID, now time.Time) (*models.Session, error) {
	return r.transition(ctx, id, models.StatusScheduled, func(tx pgx.Tx) (*models.Session, error) {
		return scanSession(tx.QueryRow(ctx,
			`UPDATE live_sessions SET status = $2, updated_at = $3
			 WHERE id = $1 RETURNING `+sessionColumns, id, string(models.StatusCancelled), now))
	})
}

// transition runs fn inside a transaction after verifying, under row lock,
// that the session exists and is in the required status.
func (r *Repository) transition(ctx context.Context, id uuid.UUID, required models.SessionStatus,
	fn func(tx pgx.Tx) (*models.Session, error)) (*models.Session, error) {

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM live_sessions WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if models.SessionStatus(status) != required {
		return nil, errs.ErrInvalidState
	}

	session, err := fn(tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return session, nil
}

// ListByCourse returns all sessions for a course, newest first.
func (r *Repository) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]models.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM live_sessions WHERE course_id = $1 ORDER BY start_time DESC`, courseID)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// ListUpcoming returns a creator's SCHEDULED sessions, soonest first.
func (r *Repository) ListUpcoming(ctx context.Context, creatorID uuid.UUID) ([]models.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM live_sessions WHERE creator_id = $1 AND status = $2 ORDER BY start_time ASC`,
		creatorID, string(models.StatusScheduled))
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// ListLive returns all currently LIVE sessions, most recently started first.
func (r *Repository) ListLive(ctx context.Context) ([]models.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM live_sessions WHERE status = $1 ORDER BY actual_start_time DESC`,
		string(models.StatusLive))
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func collectSessions(rows pgx.Rows) ([]models.Session, error) {
	defer rows.Close()
	var list []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}
