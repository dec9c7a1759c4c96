package participants

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

const participantColumns = `id, session_id, user_id, joined_at, left_at, duration_minutes,
	connected, connection_quality, can_speak, can_video, is_muted, video_disabled`

// Repository handles participant persistence. One row per (session, user);
// rejoins upsert into the existing row.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a participant repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanParticipant(row pgx.Row) (*models.Participant, error) {
	var p models.Participant
	err := row.Scan(&p.ID, &p.SessionID, &p.UserID, &p.JoinedAt, &p.LeftAt, &p.DurationMinutes,
		&p.Connected, &p.ConnectionQuality, &p.CanSpeak, &p.CanVideo, &p.IsMuted, &p.VideoDisabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Get returns the participant row for a user in a session.
func (r *Repository) Get(ctx context.Context, sessionID, userID uuid.UUID) (*models.Participant, error) {
	return scanParticipant(r.pool.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM live_participants WHERE session_id = $1 AND user_id = $2`,
		sessionID, userID))
}

// Admit inserts a fresh participant row or, on rejoin, resets the attendance
// fields of the existing one. Capability flags (can_speak, is_muted, ...)
// survive a rejoin so moderator decisions stick across reconnects.
func (r *Repository) Admit(ctx context.Context, sessionID, userID uuid.UUID, joinedAt time.Time) (*models.Participant, error) {
	return scanParticipant(r.pool.QueryRow(ctx,
		`INSERT INTO live_participants (session_id, user_id, joined_at, connected, connection_quality)
		 VALUES ($1, $2, $3, TRUE, $4)
		 ON CONFLICT (session_id, user_id) DO UPDATE
		 SET joined_at = EXCLUDED.joined_at, left_at = NULL, duration_minutes = NULL, connected = TRUE
		 RETURNING `+participantColumns,
		sessionID, userID, joinedAt, string(models.QualityGood)))
}

// Update persists the mutable fields of a participant row.
func (r *Repository) Update(ctx context.Context, p *models.Participant) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE live_participants SET joined_at = $2, left_at = $3, duration_minutes = $4, connected = $5,
		   connection_quality = $6, can_speak = $7, can_video = $8, is_muted = $9, video_disabled = $10
		 WHERE id = $1`,
		p.ID, p.JoinedAt, p.LeftAt, p.DurationMinutes, p.Connected,
		string(p.ConnectionQuality), p.CanSpeak, p.CanVideo, p.IsMuted, p.VideoDisabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ListConnected returns the participants currently connected to a session.
func (r *Repository) ListConnected(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+participantColumns+` FROM live_participants
		 WHERE session_id = $1 AND connected = TRUE ORDER BY joined_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// CountConnected returns how many participants are currently connected.
func (r *Repository) CountConnected(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM live_participants WHERE session_id = $1 AND connected = TRUE`, sessionID).Scan(&n)
	return n, err
}
