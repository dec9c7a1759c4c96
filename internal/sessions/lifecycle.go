package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillverse/live-backend/internal/errs"
	"github.com/skillverse/live-backend/internal/models"
	"github.com/skillverse/live-backend/pkg/locks"
)

// Store is the persistence surface the lifecycle manager needs.
type Store interface {
	Create(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
	Start(ctx context.Context, id uuid.UUID, now time.Time) (*models.Session, error)
	End(ctx context.Context, id uuid.UUID, now time.Time) (*models.Session, error)
	Cancel(ctx context.Context, id uuid.UUID, now time.Time) (*models.Session, error)
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]models.Session, error)
	ListUpcoming(ctx context.Context, creatorID uuid.UUID) ([]models.Session, error)
	ListLive(ctx context.Context) ([]models.Session, error)
}

// CourseDirectory resolves course ownership for create authorization.
type CourseDirectory interface {
	CourseOwner(ctx context.Context, courseID uuid.UUID) (uuid.UUID, error)
}

// Manager drives the session state machine. All transitions for a given
// session are serialized through the shared per-session lock, the same one
// the participant registry admits through, so a session cannot change state
// mid-admission.
type Manager struct {
	store      Store
	courses    CourseDirectory
	locks      *locks.PerKey
	defaultMax int
	logger     *zap.Logger
}

// NewManager creates a lifecycle manager.
func NewManager(store Store, courses CourseDirectory, perSession *locks.PerKey, defaultMax int, logger *zap.Logger) *Manager {
	return &Manager{store: store, courses: courses, locks: perSession, defaultMax: defaultMax, logger: logger}
}

// CreateParams carries everything needed to schedule a session.
type CreateParams struct {
	CourseID          uuid.UUID
	Title             string
	Description       string
	StartTime         time.Time
	ScheduledDuration *int
	MaxParticipants   *int
	RecordingEnabled  bool
	AutoRecord        bool
}

// Create schedules a new session for a course the creator owns. The room ID
// is minted fresh and never changes afterwards.
func (m *Manager) Create(ctx context.Context, creatorID uuid.UUID, p CreateParams) (*models.Session, error) {
	owner, err := m.courses.CourseOwner(ctx, p.CourseID)
	if err != nil {
		return nil, err
	}
	if owner != creatorID {
		return nil, errs.ErrUnauthorized
	}

	maxParticipants := m.defaultMax
	if p.MaxParticipants != nil && *p.MaxParticipants > 0 {
		maxParticipants = *p.MaxParticipants
	}

	session := &models.Session{
		CourseID:          p.CourseID,
		CreatorID:         creatorID,
		Title:             p.Title,
		Description:       p.Description,
		StartTime:         p.StartTime,
		ScheduledDuration: p.ScheduledDuration,
		RoomID:            uuid.New().String(),
		MaxParticipants:   maxParticipants,
		Status:            models.StatusScheduled,
		RecordingEnabled:  p.RecordingEnabled,
		AutoRecord:        p.AutoRecord,
	}
	if p.ScheduledDuration != nil {
		end := p.StartTime.Add(time.Duration(*p.ScheduledDuration) * time.Minute)
		session.EndTime = &end
	}

	if err := m.store.Create(ctx, session); err != nil {
		return nil, err
	}
	m.logger.Info("session scheduled",
		zap.String("session_id", session.ID.String()),
		zap.String("course_id", p.CourseID.String()),
		zap.String("room_id", session.RoomID))
	return session, nil
}

// Start transitions a session to LIVE. Creator only.
func (m *Manager) Start(ctx context.Context, sessionID, requesterID uuid.UUID) (*models.Session, error) {
	return m.transition(ctx, sessionID, requesterID, m.store.Start, "session started")
}

// End transitions a session to COMPLETED. Creator only.
func (m *Manager) End(ctx context.Context, sessionID, requesterID uuid.UUID) (*models.Session, error) {
	return m.transition(ctx, sessionID, requesterID, m.store.End, "session ended")
}

// Cancel transitions a session to CANCELLED. Creator only.
func (m *Manager) Cancel(ctx context.Context, sessionID, requesterID uuid.UUID) (*models.Session, error) {
	return m.transition(ctx, sessionID, requesterID, m.store.Cancel, "session cancelled")
}

func (m *Manager) transition(ctx context.Context, sessionID, requesterID uuid.UUID,
	apply func(ctx context.Context, id uuid.UUID, now time.Time) (*models.Session, error),
	event string) (*models.Session, error) {

	m.locks.Lock(sessionID)
	defer m.locks.Unlock(sessionID)

	session, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CreatorID != requesterID {
		return nil, errs.ErrUnauthorized
	}

	updated, err := apply(ctx, sessionID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	m.logger.Info(event,
		zap.String("session_id", sessionID.String()),
		zap.String("status", string(updated.Status)))
	return updated, nil
}

// Get returns a single session.
func (m *Manager) Get(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	return m.store.Get(ctx, sessionID)
}

// ListByCourse returns all sessions of a course.
func (m *Manager) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]models.Session, error) {
	return m.store.ListByCourse(ctx, courseID)
}

// ListUpcoming returns a creator's scheduled sessions.
func (m *Manager) ListUpcoming(ctx context.Context, creatorID uuid.UUID) ([]models.Session, error) {
	return m.store.ListUpcoming(ctx, creatorID)
}

// ListLive returns all sessions currently in progress.
func (m *Manager) ListLive(ctx context.Context) ([]models.Session, error) {
	return m.store.ListLive(ctx)
}
