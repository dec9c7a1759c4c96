package participants

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"github.com/skillverse/live-backend/internal/errs"
	"github.com/skillverse/live-backend/internal/models"
	"github.com/skillverse/live-backend/pkg/locks"
)

// Store is the persistence surface the registry needs.
type Store interface {
	Get(ctx context.Context, sessionID, userID uuid.UUID) (*models.Participant, error)
	Admit(ctx context.Context, sessionID, userID uuid.UUID, joinedAt time.Time) (*models.Participant, error)
	Update(ctx context.Context, p *models.Participant) error
	ListConnected(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error)
	CountConnected(ctx context.Context, sessionID uuid.UUID) (int, error)
}

// SessionSource resolves sessions during admission.
type SessionSource interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// EnrollmentSource answers whether a user is enrolled in a course.
type EnrollmentSource interface {
	IsEnrolled(ctx context.Context, courseID, userID uuid.UUID) (bool, error)
}

// TokenIssuer mints single-use websocket tokens.
type TokenIssuer interface {
	Issue(ctx context.Context, sessionID, userID uuid.UUID) (string, error)
}

// MediaConfig is everything a client needs to open its media connection.
type MediaConfig struct {
	RoomID     string             `json:"room_id"`
	WSURL      string             `json:"ws_url"`
	ICEServers []webrtc.ICEServer `json:"ice_servers"`
}

// JoinResult is the payload returned from a successful join.
type JoinResult struct {
	Session     *models.Session      `json:"session"`
	Participant *models.Participant  `json:"participant"`
	Others      []models.Participant `json:"others"`
	Media       MediaConfig          `json:"media"`
	Token       string               `json:"token"`
	IsCreator   bool                 `json:"is_creator"`
}

// Registry admits users into sessions and tracks attendance. Admissions for
// one session are serialized through the same per-session lock the lifecycle
// manager uses, so the capacity check and the insert are a single atomic
// step with respect to state transitions and concurrent joins.
type Registry struct {
	store       Store
	sessions    SessionSource
	enrollments EnrollmentSource
	tokens      TokenIssuer
	locks       *locks.PerKey
	wsURL       string
	iceServers  []webrtc.ICEServer
	logger      *zap.Logger
}

// NewRegistry creates a participant registry.
func NewRegistry(store Store, sessions SessionSource, enrollments EnrollmentSource, tokens TokenIssuer,
	perSession *locks.PerKey, wsURL string, iceURLs []string, logger *zap.Logger) *Registry {

	ice := make([]webrtc.ICEServer, 0, len(iceURLs))
	for _, u := range iceURLs {
		ice = append(ice, webrtc.ICEServer{URLs: []string{u}})
	}
	return &Registry{
		store:       store,
		sessions:    sessions,
		enrollments: enrollments,
		tokens:      tokens,
		locks:       perSession,
		wsURL:       wsURL,
		iceServers:  ice,
		logger:      logger,
	}
}

// Join admits a user into a session.
//
// Rules, checked in order under the session lock:
//   - the session must be SCHEDULED or LIVE (terminal states reject);
//   - anyone who is not the creator must be enrolled in the course;
//   - while LIVE, non-creators are rejected at capacity. The creator is
//     never counted against capacity and always gets in.
//
// A join while SCHEDULED counts as attendance from that moment: the row is
// connected with joinedAt set, and the start transition leaves it alone.
func (r *Registry) Join(ctx context.Context, sessionID, userID uuid.UUID) (*JoinResult, error) {
	r.locks.Lock(sessionID)
	defer r.locks.Unlock(sessionID)

	session, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.StatusScheduled && session.Status != models.StatusLive {
		return nil, errs.ErrSessionUnavailable
	}

	isCreator := session.CreatorID == userID
	if !isCreator {
		enrolled, err := r.enrollments.IsEnrolled(ctx, session.CourseID, userID)
		if err != nil {
			return nil, err
		}
		if !enrolled {
			return nil, errs.ErrUnauthorized
		}
		if session.Status == models.StatusLive {
			count, err := r.store.CountConnected(ctx, sessionID)
			if err != nil {
				return nil, err
			}
			if count >= session.MaxParticipants {
				return nil, errs.ErrSessionFull
			}
		}
	}

	participant, err := r.store.Admit(ctx, sessionID, userID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	others, err := r.store.ListConnected(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	filtered := others[:0]
	for _, p := range others {
		if p.UserID != userID {
			filtered = append(filtered, p)
		}
	}

	token, err := r.tokens.Issue(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	r.logger.Info("participant admitted",
		zap.String("session_id", sessionID.String()),
		zap.String("user_id", userID.String()),
		zap.Bool("is_creator", isCreator),
		zap.String("status", string(session.Status)))

	return &JoinResult{
		Session:     session,
		Participant: participant,
		Others:      filtered,
		Media: MediaConfig{
			RoomID:     session.RoomID,
			WSURL:      r.wsURL,
			ICEServers: r.iceServers,
		},
		Token:     token,
		IsCreator: isCreator,
	}, nil
}

// Leave marks a participant disconnected and accumulates attended minutes.
// Leaving twice, or leaving a session never joined live, is harmless.
func (r *Registry) Leave(ctx context.Context, sessionID, userID uuid.UUID) (*models.Participant, error) {
	r.locks.Lock(sessionID)
	defer r.locks.Unlock(sessionID)

	participant, err := r.store.Get(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if !participant.Connected {
		return participant, nil
	}

	now := time.Now().UTC()
	participant.Connected = false
	participant.LeftAt = &now
	if participant.JoinedAt != nil {
		elapsed := int(now.Sub(*participant.JoinedAt).Minutes())
		if elapsed < 0 {
			elapsed = 0
		}
		total := elapsed
		if participant.DurationMinutes != nil {
			total += *participant.DurationMinutes
		}
		participant.DurationMinutes = &total
	}

	if err := r.store.Update(ctx, participant); err != nil {
		return nil, err
	}
	r.logger.Info("participant left",
		zap.String("session_id", sessionID.String()),
		zap.String("user_id", userID.String()))
	return participant, nil
}

// ReportQuality records the connection quality a client reports for itself.
func (r *Registry) ReportQuality(ctx context.Context, sessionID, userID uuid.UUID, quality models.ConnectionQuality) error {
	participant, err := r.store.Get(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	participant.ConnectionQuality = quality
	return r.store.Update(ctx, participant)
}

// ListActive returns the currently connected participants of a session.
func (r *Registry) ListActive(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	return r.store.ListConnected(ctx, sessionID)
}
