package recordings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillverse/live-backend/internal/errs"
	"github.com/skillverse/live-backend/internal/models"
)

const recordingColumns = `id, session_id, status, s3_key, duration_seconds, size_bytes, created_at, updated_at`

// Repository handles recording metadata persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recording repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRecording(row pgx.Row) (*models.Recording, error) {
	var rec models.Recording
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.Status, &rec.S3Key,
		&rec.DurationSeconds, &rec.SizeBytes, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create inserts a recording in PROCESSING state.
func (r *Repository) Create(ctx context.Context, rec *models.Recording) error {
	const q = `INSERT INTO recordings (session_id, status, s3_key, duration_seconds, size_bytes)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, rec.SessionID, string(rec.Status), rec.S3Key,
		rec.DurationSeconds, rec.SizeBytes).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
}

// Get returns a recording by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	return scanRecording(r.pool.QueryRow(ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE id = $1`, id))
}

// ListBySession returns all recordings of a session, newest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Recording, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE session_id = $1 ORDER BY created_at DESC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *rec)
	}
	return list, rows.Err()
}

// MarkAvailable finalizes a recording with its storage key and media stats.
func (r *Repository) MarkAvailable(ctx context.Context, id uuid.UUID, s3Key string, durationSeconds, sizeBytes int64) error {
	return r.setFinalized(ctx, id, models.RecordingAvailable, s3Key, durationSeconds, sizeBytes)
}

// MarkFailed flags a recording whose finalization gave up.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return r.setFinalized(ctx, id, models.RecordingFailed, "", 0, 0)
}

func (r *Repository) setFinalized(ctx context.Context, id uuid.UUID, status models.RecordingStatus,
	s3Key string, durationSeconds, sizeBytes int64) error {

	tag, err := r.pool.Exec(ctx,
		`UPDATE recordings SET status = $2, s3_key = COALESCE(NULLIF($3, ''), s3_key),
		   duration_seconds = $4, size_bytes = $5, updated_at = NOW()
		 WHERE id = $1`, id, string(status), s3Key, durationSeconds, sizeBytes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
