package control

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skillverse/live-backend/internal/errs"
	"github.com/skillverse/live-backend/internal/models"
	"github.com/skillverse/live-backend/internal/signaling"
)

type fakeSessions struct {
	session *models.Session
}

func (f *fakeSessions) Get(_ context.Context, id uuid.UUID) (*models.Session, error) {
	if f.session == nil || f.session.ID != id {
		return nil, errs.ErrNotFound
	}
	cp := *f.session
	return &cp, nil
}

type fakeParticipants struct {
	rows map[uuid.UUID]*models.Participant
}

func (f *fakeParticipants) Get(_ context.Context, _, userID uuid.UUID) (*models.Participant, error) {
	p, ok := f.rows[userID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeParticipants) Update(_ context.Context, p *models.Participant) error {
	if _, ok := f.rows[p.UserID]; !ok {
		return errs.ErrNotFound
	}
	cp := *p
	f.rows[p.UserID] = &cp
	return nil
}

type sentSignal struct {
	roomID string
	peerID string
	sig    signaling.Signal
}

type fakeNotifier struct {
	sent []sentSignal
}

func (f *fakeNotifier) SendToPeer(roomID, peerID string, sig signaling.Signal) {
	f.sent = append(f.sent, sentSignal{roomID: roomID, peerID: peerID, sig: sig})
}

type dispatcherFixture struct {
	dispatcher *Dispatcher
	notifier   *fakeNotifier
	store      *fakeParticipants
	session    *models.Session
	creator    uuid.UUID
	target     uuid.UUID
}

func newDispatcherFixture(status models.SessionStatus) *dispatcherFixture {
	creator := uuid.New()
	target := uuid.New()
	now := time.Now().UTC()
	session := &models.Session{
		ID:        uuid.New(),
		CreatorID: creator,
		RoomID:    uuid.New().String(),
		Status:    status,
	}
	store := &fakeParticipants{rows: map[uuid.UUID]*models.Participant{
		target: {
			ID:        uuid.New(),
			SessionID: session.ID,
			UserID:    target,
			JoinedAt:  &now,
			Connected: true,
			CanSpeak:  true,
			CanVideo:  true,
		},
	}}
	notifier := &fakeNotifier{}
	return &dispatcherFixture{
		dispatcher: NewDispatcher(&fakeSessions{session: session}, store, notifier, zap.NewNop()),
		notifier:   notifier,
		store:      store,
		session:    session,
		creator:    creator,
		target:     target,
	}
}

func (fx *dispatcherFixture) lastNotification(t *testing.T) signaling.ControlPayload {
	t.Helper()
	require.NotEmpty(t, fx.notifier.sent)
	last := fx.notifier.sent[len(fx.notifier.sent)-1]
	require.Equal(t, fx.session.RoomID, last.roomID)
	require.Equal(t, fx.target.String(), last.peerID)
	require.Equal(t, signaling.TypeControl, last.sig.Type)
	var payload signaling.ControlPayload
	require.NoError(t, json.Unmarshal(last.sig.Payload, &payload))
	return payload
}

func TestDispatcher_MuteAndUnmute(t *testing.T) {
	req := require.New(t)
	fx := newDispatcherFixture(models.StatusLive)
	ctx := context.Background()

	// When the creator mutes the target
	p, err := fx.dispatcher.Dispatch(ctx, fx.session.ID, fx.creator, fx.target, ActionMuteAudio, "")
	req.NoError(err)
	req.True(p.IsMuted)
	req.Equal("mute-audio", fx.lastNotification(t).Action)

	// And unmutes them again
	p, err = fx.dispatcher.Dispatch(ctx, fx.session.ID, fx.creator, fx.target, ActionUnmuteAudio, "")
	req.NoError(err)
	req.False(p.IsMuted)
	req.Equal("unmute-audio", fx.lastNotification(t).Action)
}

func TestDispatcher_VideoToggle(t *testing.T) {
	req := require.New(t)
	fx := newDispatcherFixture(models.StatusLive)
	ctx := context.Background()

	p, err := fx.dispatcher.Dispatch(ctx, fx.session.ID, fx.creator, fx.target, ActionDisableVideo, "")
	req.NoError(err)
	req.True(p.VideoDisabled)
	req.Equal("disable-video", fx.lastNotification(t).Action)

	p, err = fx.dispatcher.Dispatch(ctx, fx.session.ID, fx.creator, fx.target, ActionEnableVideo, "")
	req.NoError(err)
	req.False(p.VideoDisabled)
	req.Equal("enable-video", fx.lastNotification(t).Action)
}

func TestDispatcher_Kick_LeavesAttendanceAlone(t *testing.T) {
	req := require.New(t)
	fx := newDispatcherFixture(models.StatusLive)

	// When the creator kicks the target with a reason
	p, err := fx.dispatcher.Dispatch(context.Background(), fx.session.ID, fx.creator, fx.target,
		ActionKick, "disruptive")

	// Then the target is disconnected but attendance fields stay untouched
	req.NoError(err)
	req.False(p.Connected)
	req.Nil(p.LeftAt)
	req.Nil(p.DurationMinutes)

	payload := fx.lastNotification(t)
	req.Equal("kicked", payload.Action)
	req.Equal("disruptive", payload.Reason)
}

func TestDispatcher_SpeakPermission(t *testing.T) {
	req := require.New(t)
	fx := newDispatcherFixture(models.StatusLive)
	ctx := context.Background()

	// Revoking speech also mutes
	p, err := fx.dispatcher.Dispatch(ctx, fx.session.ID, fx.creator, fx.target, ActionRevokeSpeak, "")
	req.NoError(err)
	req.False(p.CanSpeak)
	req.True(p.IsMuted)
	req.Equal("cannot-speak", fx.lastNotification(t).Action)

	// Granting speech restores the permission but leaves the mute in place
	p, err = fx.dispatcher.Dispatch(ctx, fx.session.ID, fx.creator, fx.target, ActionGrantSpeak, "")
	req.NoError(err)
	req.True(p.CanSpeak)
	req.True(p.IsMuted)
	req.Equal("can-speak", fx.lastNotification(t).Action)
}

func TestDispatcher_RejectsNonCreator(t *testing.T) {
	req := require.New(t)
	fx := newDispatcherFixture(models.StatusLive)

	// When a non-creator issues a command
	_, err := fx.dispatcher.Dispatch(context.Background(), fx.session.ID, uuid.New(), fx.target,
		ActionMuteAudio, "")

	// Then nothing changes and nothing is sent
	req.ErrorIs(err, errs.ErrUnauthorized)
	req.False(fx.store.rows[fx.target].IsMuted)
	req.Empty(fx.notifier.sent)
}

func TestDispatcher_UnknownTarget(t *testing.T) {
	req := require.New(t)
	fx := newDispatcherFixture(models.StatusLive)

	_, err := fx.dispatcher.Dispatch(context.Background(), fx.session.ID, fx.creator, uuid.New(),
		ActionMuteAudio, "")
	req.ErrorIs(err, errs.ErrNotFound)
}

func TestParseAction(t *testing.T) {
	req := require.New(t)
	for _, name := range []string{"MUTE_AUDIO", "UNMUTE_AUDIO", "DISABLE_VIDEO", "ENABLE_VIDEO",
		"KICK_PARTICIPANT", "GRANT_SPEAK_PERMISSION", "REVOKE_SPEAK_PERMISSION"} {
		action, ok := ParseAction(name)
		req.True(ok, name)
		req.Equal(Action(name), action)
	}

	_, ok := ParseAction("SHADOW_BAN")
	req.False(ok)
}
