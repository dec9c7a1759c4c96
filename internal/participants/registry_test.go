package participants

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skillverse/live-backend/internal/errs"
	"github.com/skillverse/live-backend/internal/models"
	"github.com/skillverse/live-backend/pkg/locks"
)

type participantKey struct {
	sessionID uuid.UUID
	userID    uuid.UUID
}

// fakeParticipantStore mirrors the upsert semantics of the SQL layer:
// attendance fields reset on rejoin, capability flags survive.
type fakeParticipantStore struct {
	mu   sync.Mutex
	rows map[participantKey]*models.Participant
}

func newFakeParticipantStore() *fakeParticipantStore {
	return &fakeParticipantStore{rows: make(map[participantKey]*models.Participant)}
}

func (f *fakeParticipantStore) Get(_ context.Context, sessionID, userID uuid.UUID) (*models.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[participantKey{sessionID, userID}]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeParticipantStore) Admit(_ context.Context, sessionID, userID uuid.UUID, joinedAt time.Time) (*models.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := participantKey{sessionID, userID}
	p, ok := f.rows[key]
	if !ok {
		p = &models.Participant{
			ID:                uuid.New(),
			SessionID:         sessionID,
			UserID:            userID,
			ConnectionQuality: models.QualityGood,
			CanSpeak:          true,
			CanVideo:          true,
		}
		f.rows[key] = p
	}
	p.JoinedAt = &joinedAt
	p.LeftAt = nil
	p.DurationMinutes = nil
	p.Connected = true
	cp := *p
	return &cp, nil
}

func (f *fakeParticipantStore) Update(_ context.Context, p *models.Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := participantKey{p.SessionID, p.UserID}
	if _, ok := f.rows[key]; !ok {
		return errs.ErrNotFound
	}
	cp := *p
	f.rows[key] = &cp
	return nil
}

func (f *fakeParticipantStore) ListConnected(_ context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Participant
	for key, p := range f.rows {
		if key.sessionID == sessionID && p.Connected {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeParticipantStore) CountConnected(_ context.Context, sessionID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for key, p := range f.rows {
		if key.sessionID == sessionID && p.Connected {
			n++
		}
	}
	return n, nil
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.Session
}

func (f *fakeSessions) Get(_ context.Context, id uuid.UUID) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

type fakeEnrollments struct {
	enrolled map[uuid.UUID]bool
}

func (f *fakeEnrollments) IsEnrolled(_ context.Context, _, userID uuid.UUID) (bool, error) {
	return f.enrolled[userID], nil
}

type fakeTokens struct {
	mu     sync.Mutex
	issued int
}

func (f *fakeTokens) Issue(_ context.Context, sessionID, userID uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued++
	return fmt.Sprintf("tok-%d", f.issued), nil
}

type registryFixture struct {
	registry    *Registry
	store       *fakeParticipantStore
	sessions    *fakeSessions
	enrollments *fakeEnrollments
	session     *models.Session
	creator     uuid.UUID
}

func newRegistryFixture(status models.SessionStatus, maxParticipants int) *registryFixture {
	creator := uuid.New()
	session := &models.Session{
		ID:              uuid.New(),
		CourseID:        uuid.New(),
		CreatorID:       creator,
		RoomID:          uuid.New().String(),
		MaxParticipants: maxParticipants,
		Status:          status,
	}
	store := newFakeParticipantStore()
	sessions := &fakeSessions{sessions: map[uuid.UUID]*models.Session{session.ID: session}}
	enrollments := &fakeEnrollments{enrolled: make(map[uuid.UUID]bool)}
	registry := NewRegistry(store, sessions, enrollments, &fakeTokens{}, locks.NewPerKey(),
		"ws://localhost:8080/ws", []string{"stun:stun.l.google.com:19302"}, zap.NewNop())
	return &registryFixture{
		registry:    registry,
		store:       store,
		sessions:    sessions,
		enrollments: enrollments,
		session:     session,
		creator:     creator,
	}
}

func (fx *registryFixture) enroll(userID uuid.UUID) {
	fx.enrollments.enrolled[userID] = true
}

func TestRegistry_Join_EnrolledUserIntoLiveSession(t *testing.T) {
	req := require.New(t)
	fx := newRegistryFixture(models.StatusLive, 10)
	learner := uuid.New()
	fx.enroll(learner)

	// When an enrolled learner joins a live session
	result, err := fx.registry.Join(context.Background(), fx.session.ID, learner)

	// Then the participant is connected with a join timestamp
	req.NoError(err)
	req.True(result.Participant.Connected)
	req.NotNil(result.Participant.JoinedAt)
	req.False(result.IsCreator)

	// And the payload carries everything needed to open the media connection
	req.Equal(fx.session.RoomID, result.Media.RoomID)
	req.Equal("ws://localhost:8080/ws", result.Media.WSURL)
	req.Len(result.Media.ICEServers, 1)
	req.NotEmpty(result.Token)
	req.Empty(result.Others)
}

func TestRegistry_Join_BeforeStartCountsAsAttendance(t *testing.T) {
	req := require.New(t)
	fx := newRegistryFixture(models.StatusScheduled, 10)
	learner := uuid.New()
	fx.enroll(learner)

	// When a learner joins before the session starts
	result, err := fx.registry.Join(context.Background(), fx.session.ID, learner)

	// Then they are connected with a join timestamp right away
	req.NoError(err)
	req.True(result.Participant.Connected)
	req.NotNil(result.Participant.JoinedAt)
}

func TestRegistry_Join_NoCapacityCheckWhileScheduled(t *testing.T) {
	req := require.New(t)
	fx := newRegistryFixture(models.StatusScheduled, 1)
	ctx := context.Background()

	// When more learners than seats join a session that has not started
	for i := 0; i < 3; i++ {
		learner := uuid.New()
		fx.enroll(learner)
		_, err := fx.registry.Join(ctx, fx.session.ID, learner)
		req.NoError(err)
	}
}

func TestRegistry_Join_RejectsNonEnrolled(t *testing.T) {
	req := require.New(t)
	fx := newRegistryFixture(models.StatusLive, 10)

	// When a stranger tries to join
	_, err := fx.registry.Join(context.Background(), fx.session.ID, uuid.New())

	// Then they are turned away and no row is created
	req.ErrorIs(err, errs.ErrUnauthorized)
	count, _ := fx.store.CountConnected(context.Background(), fx.session.ID)
	req.Zero(count)
}

func TestRegistry_Join_RejectsTerminalStates(t *testing.T) {
	req := require.New(t)
	for _, status := range []models.SessionStatus{models.StatusCompleted, models.StatusCancelled} {
		fx := newRegistryFixture(status, 10)
		learner := uuid.New()
		fx.enroll(learner)

		_, err := fx.registry.Join(context.Background(), fx.session.ID, learner)
		req.ErrorIs(err, errs.ErrSessionUnavailable)
	}
}

func TestRegistry_Join_UnknownSession(t *testing.T) {
	req := require.New(t)
	fx := newRegistryFixture(models.StatusLive, 10)

	_, err := fx.registry.Join(context.Background(), uuid.New(), uuid.New())
	req.ErrorIs(err, errs.ErrNotFound)
}

func TestRegistry_Join_EnforcesCapacity(t *testing.T) {
	req := require.New(t)
	fx := newRegistryFixture(models.StatusLive, 2)
	ctx := context.Background()

	// Given a live session filled to capacity
	for i := 0; i < 2; i++ {
		learner := uuid.New()
		fx.enroll(learner)
		_, err := fx.registry.Join(ctx, fx.session.ID, learner)
		req.NoError(err)
	}

	// When one more learner tries to join
	late := uuid.New()
	fx.enroll(late)
	_, err := fx.registry.Join(ctx, fx.session.ID, late)

	// Then they are rejected
	req.ErrorIs(err, errs.ErrSessionFull)

	// But the creator still gets in
	_, err = fx.registry.Join(ctx, fx.session.ID, fx.creator)
	req.NoError(err)
}

func TestRegistry_Join_ConcurrentJoinsNeverOverfill(t *testing.T) {
	req := require.New(t)
	const capacity = 5
	const contenders = 20
	fx := newRegistryFixture(models.StatusLive, capacity)
	ctx := context.Background()

	learners := make([]uuid.UUID, contenders)
	for i := range learners {
		learners[i] = uuid.New()
		fx.enroll(learners[i])
	}

	// When far more learners than seats join at once
	results := make(chan error, contenders)
	var wg sync.WaitGroup
	for _, learner := range learners {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := fx.registry.Join(ctx, fx.session.ID, id)
			results <- err
		}(learner)
	}
	wg.Wait()
	close(results)

	// Then exactly capacity joins succeed and the rest see a full session
	var admitted, rejected int
	for err := range results {
		switch {
		case err == nil:
			admitted++
		default:
			req.ErrorIs(err, errs.ErrSessionFull)
			rejected++
		}
	}
	req.Equal(capacity, admitted)
	req.Equal(contenders-capacity, rejected)

	count, _ := fx.store.CountConnected(ctx, fx.session.ID)
	req.Equal(capacity, count)
}

func TestRegistry_Rejoin_KeepsModeratorFlags(t *testing.T) {
	req := require.New(t)
	fx := newRegistryFixture(models.StatusLive, 10)
	ctx := context.Background()
	learner := uuid.New()
	fx.enroll(learner)

	// Given a muted participant that left
	first, err := fx.registry.Join(ctx, fx.session.ID, learner)
	req.NoError(err)
	muted := *first.Participant
	muted.IsMuted = true
	muted.CanSpeak = false
	req.NoError(fx.store.Update(ctx, &muted))
	_, err = fx.registry.Leave(ctx, fx.session.ID, learner)
	req.NoError(err)

	// When they rejoin
	again, err := fx.registry.Join(ctx, fx.session.ID, learner)

	// Then the same row is reused with attendance reset and flags intact
	req.NoError(err)
	req.Equal(first.Participant.ID, again.Participant.ID)
	req.True(again.Participant.Connected)
	req.Nil(again.Participant.LeftAt)
	req.Nil(again.Participant.DurationMinutes)
	req.True(again.Participant.IsMuted)
	req.False(again.Participant.CanSpeak)
}

func TestRegistry_Leave_AccumulatesMinutes(t *testing.T) {
	req := require.New(t)
	fx := newRegistryFixture(models.StatusLive, 10)
	ctx := context.Background()
	learner := uuid.New()
	fx.enroll(learner)

	result, err := fx.registry.Join(ctx, fx.session.ID, learner)
	req.NoError(err)

	// Given the participant has been in the room for a while
	joined := time.Now().UTC().Add(-42 * time.Minute)
	backdated := *result.Participant
	backdated.JoinedAt = &joined
	req.NoError(fx.store.Update(ctx, &backdated))

	// When they leave
	left, err := fx.registry.Leave(ctx, fx.session.ID, learner)

	// Then attendance is settled
	req.NoError(err)
	req.False(left.Connected)
	req.NotNil(left.LeftAt)
	req.NotNil(left.DurationMinutes)
	req.Equal(42, *left.DurationMinutes)

	// And leaving again changes nothing
	again, err := fx.registry.Leave(ctx, fx.session.ID, learner)
	req.NoError(err)
	req.Equal(42, *again.DurationMinutes)
}

func TestRegistry_Leave_UnknownParticipant(t *testing.T) {
	req := require.New(t)
	fx := newRegistryFixture(models.StatusLive, 10)

	_, err := fx.registry.Leave(context.Background(), fx.session.ID, uuid.New())
	req.ErrorIs(err, errs.ErrNotFound)
}

func TestRegistry_FullSessionScenario(t *testing.T) {
	req := require.New(t)
	fx := newRegistryFixture(models.StatusScheduled, 2)
	ctx := context.Background()
	learnerA, learnerB, learnerD := uuid.New(), uuid.New(), uuid.New()
	fx.enroll(learnerA)
	fx.enroll(learnerB)
	fx.enroll(learnerD)

	// Given learner A joins while the session is still scheduled
	joinedA, err := fx.registry.Join(ctx, fx.session.ID, learnerA)
	req.NoError(err)
	req.True(joinedA.Participant.Connected)
	req.NotNil(joinedA.Participant.JoinedAt)

	// When the session goes live, A's join timestamp is untouched
	fx.sessions.mu.Lock()
	fx.session.Status = models.StatusLive
	fx.sessions.mu.Unlock()
	a, err := fx.store.Get(ctx, fx.session.ID, learnerA)
	req.NoError(err)
	req.Equal(*joinedA.Participant.JoinedAt, *a.JoinedAt)

	// And learner B fills the last seat
	joinedB, err := fx.registry.Join(ctx, fx.session.ID, learnerB)
	req.NoError(err)
	req.Len(joinedB.Others, 1)

	// Then learner D bounces off the full session with no row left behind
	_, err = fx.registry.Join(ctx, fx.session.ID, learnerD)
	req.ErrorIs(err, errs.ErrSessionFull)
	_, err = fx.store.Get(ctx, fx.session.ID, learnerD)
	req.ErrorIs(err, errs.ErrNotFound)
}

func TestRegistry_ReportQuality(t *testing.T) {
	req := require.New(t)
	fx := newRegistryFixture(models.StatusLive, 10)
	ctx := context.Background()
	learner := uuid.New()
	fx.enroll(learner)
	_, err := fx.registry.Join(ctx, fx.session.ID, learner)
	req.NoError(err)

	req.NoError(fx.registry.ReportQuality(ctx, fx.session.ID, learner, models.QualityPoor))

	p, err := fx.store.Get(ctx, fx.session.ID, learner)
	req.NoError(err)
	req.Equal(models.QualityPoor, p.ConnectionQuality)
}
