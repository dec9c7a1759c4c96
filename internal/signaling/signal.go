package signaling

import "encoding/json"

// Signal types carried over the websocket. Negotiation types (offer, answer,
// ice-candidate) are relayed between peers; the rest are emitted or consumed
// by the router itself.
const (
	TypeOffer            = "offer"
	TypeAnswer           = "answer"
	TypeICECandidate     = "ice-candidate"
	TypeJoin             = "join"
	TypeLeave            = "leave"
	TypePeersList        = "peers-list"
	TypePeerJoined       = "peer-joined"
	TypePeerLeft         = "peer-left"
	TypeMediaStateChange = "media-state-changed"
	TypeStartScreenShare = "start-screen-share"
	TypeStopScreenShare  = "stop-screen-share"
	TypeControl          = "control"
)

// Signal is the wire-level message exchanged through the router.
type Signal struct {
	Type          string          `json:"type"`
	RoomID        string          `json:"roomId"`
	PeerID        string          `json:"peerId,omitempty"`
	TargetPeerID  string          `json:"targetPeerId,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	UserID        string          `json:"userId,omitempty"`
	UserName      string          `json:"userName,omitempty"`
	IsCreator     bool            `json:"isCreator,omitempty"`
	AudioEnabled  *bool           `json:"audioEnabled,omitempty"`
	VideoEnabled  *bool           `json:"videoEnabled,omitempty"`
	ScreenSharing *bool           `json:"screenSharing,omitempty"`
}

// PeerMeta is the caller-supplied identity broadcast with peer-joined.
type PeerMeta struct {
	UserID    string
	UserName  string
	IsCreator bool
}

// ControlPayload is the payload of a control signal pushed to a single peer.
type ControlPayload struct {
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
}
