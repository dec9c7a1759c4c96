package control

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillverse/live-backend/internal/errs"
	"github.com/skillverse/live-backend/internal/models"
	"github.com/skillverse/live-backend/internal/signaling"
)

// Action is a moderator command aimed at a single participant.
type Action string

const (
	ActionMuteAudio    Action = "MUTE_AUDIO"
	ActionUnmuteAudio  Action = "UNMUTE_AUDIO"
	ActionDisableVideo Action = "DISABLE_VIDEO"
	ActionEnableVideo  Action = "ENABLE_VIDEO"
	ActionKick         Action = "KICK_PARTICIPANT"
	ActionGrantSpeak   Action = "GRANT_SPEAK_PERMISSION"
	ActionRevokeSpeak  Action = "REVOKE_SPEAK_PERMISSION"
)

// ParseAction validates a wire action string.
func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionMuteAudio, ActionUnmuteAudio, ActionDisableVideo, ActionEnableVideo,
		ActionKick, ActionGrantSpeak, ActionRevokeSpeak:
		return Action(s), true
	}
	return "", false
}

// SessionSource resolves the session a command targets.
type SessionSource interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// ParticipantStore reads and writes the targeted participant row.
type ParticipantStore interface {
	Get(ctx context.Context, sessionID, userID uuid.UUID) (*models.Participant, error)
	Update(ctx context.Context, p *models.Participant) error
}

// Notifier pushes a signal to a single peer in a room.
type Notifier interface {
	SendToPeer(roomID, peerID string, sig signaling.Signal)
}

// Dispatcher applies moderator commands: it persists the effect on the
// participant row first, then pushes a targeted notification over the
// signaling channel. The notification is best effort; a disconnected target
// still gets the persisted state on its next rejoin.
type Dispatcher struct {
	sessions     SessionSource
	participants ParticipantStore
	notifier     Notifier
	logger       *zap.Logger
}

// NewDispatcher creates a control dispatcher.
func NewDispatcher(sessions SessionSource, participants ParticipantStore, notifier Notifier, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{sessions: sessions, participants: participants, notifier: notifier, logger: logger}
}

// Dispatch applies one action from the requester to the target participant.
// Only the session creator may issue commands, and the target must already
// have a participant row.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID, requesterID, targetUserID uuid.UUID,
	action Action, reason string) (*models.Participant, error) {

	session, err := d.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CreatorID != requesterID {
		return nil, errs.ErrUnauthorized
	}

	participant, err := d.participants.Get(ctx, sessionID, targetUserID)
	if err != nil {
		return nil, err
	}

	var notification string
	switch action {
	case ActionMuteAudio:
		participant.IsMuted = true
		notification = "mute-audio"
	case ActionUnmuteAudio:
		participant.IsMuted = false
		notification = "unmute-audio"
	case ActionDisableVideo:
		participant.VideoDisabled = true
		notification = "disable-video"
	case ActionEnableVideo:
		participant.VideoDisabled = false
		notification = "enable-video"
	case ActionKick:
		// A kick drops the connection flag only. left_at and the duration
		// stay unset until an explicit leave or the session ends.
		participant.Connected = false
		notification = "kicked"
	case ActionGrantSpeak:
		participant.CanSpeak = true
		notification = "can-speak"
	case ActionRevokeSpeak:
		// Revoking speech also mutes, so the target cannot keep talking on a
		// stale grant.
		participant.CanSpeak = false
		participant.IsMuted = true
		notification = "cannot-speak"
	default:
		return nil, errs.ErrInvalidState
	}

	if err := d.participants.Update(ctx, participant); err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(signaling.ControlPayload{Action: notification, Reason: reason})
	d.notifier.SendToPeer(session.RoomID, targetUserID.String(), signaling.Signal{
		Type:    signaling.TypeControl,
		RoomID:  session.RoomID,
		Payload: payload,
	})

	d.logger.Info("control action dispatched",
		zap.String("session_id", sessionID.String()),
		zap.String("target_user_id", targetUserID.String()),
		zap.String("action", string(action)))
	return participant, nil
}
