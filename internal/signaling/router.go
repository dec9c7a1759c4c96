package signaling

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Sender is one peer's outbound channel. Send must never block; it reports
// false when the message was dropped (peer gone or buffer full).
type Sender interface {
	Send(sig Signal) bool
}

// Router is the process-local room registry and relay. All state is
// ephemeral: a restart loses every room, while participant history stays in
// the database untouched.
//
// The maps are kept in lockstep under one mutex: room -> peers, peer ->
// room, and the transport connection <-> peer pair (so a raw disconnect,
// which carries no payload, can still be resolved to a peer, and a stale
// disconnect from a replaced connection can be told apart from the live
// one). A room exists iff its peer set is non-empty.
type Router struct {
	mu            sync.RWMutex
	rooms         map[string]map[string]Sender
	peerRoom      map[string]string
	transportPeer map[string]string
	peerTransport map[string]string
	logger        *zap.Logger
}

// NewRouter creates an empty signaling router.
func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		rooms:         make(map[string]map[string]Sender),
		peerRoom:      make(map[string]string),
		transportPeer: make(map[string]string),
		peerTransport: make(map[string]string),
		logger:        logger,
	}
}

// HandleJoin adds the peer to the room, sends it a snapshot of the other
// peers already present, and broadcasts peer-joined to everyone else. A join
// for a peer already in the room is a reconnect: the new transport replaces
// the old one, and the old transport's later disconnect must not evict the
// peer.
func (r *Router) HandleJoin(roomID, peerID string, meta PeerMeta, transportID string, s Sender) {
	r.mu.Lock()
	peers, ok := r.rooms[roomID]
	if !ok {
		peers = make(map[string]Sender)
		r.rooms[roomID] = peers
	}
	peers[peerID] = s
	r.peerRoom[peerID] = roomID
	if old, ok := r.peerTransport[peerID]; ok && old != transportID {
		delete(r.transportPeer, old)
	}
	r.peerTransport[peerID] = transportID
	r.transportPeer[transportID] = peerID
	others := make([]string, 0, len(peers)-1)
	for id := range peers {
		if id != peerID {
			others = append(others, id)
		}
	}
	total := len(peers)
	r.mu.Unlock()

	snapshot, _ := json.Marshal(others)
	s.Send(Signal{Type: TypePeersList, RoomID: roomID, Payload: snapshot})

	r.broadcast(roomID, Signal{
		Type:      TypePeerJoined,
		RoomID:    roomID,
		PeerID:    peerID,
		UserID:    meta.UserID,
		UserName:  meta.UserName,
		IsCreator: meta.IsCreator,
	}, peerID)

	r.logger.Info("peer joined room",
		zap.String("peer_id", peerID), zap.String("room_id", roomID), zap.Int("peers", total))
}

// HandleLeave removes the peer from its room and notifies the remaining
// peers. Leaving a peer that is not present is a no-op.
func (r *Router) HandleLeave(roomID, peerID string) {
	r.removePeer(roomID, peerID)
}

// HandleDisconnect resolves a raw transport disconnect to its peer and
// removes it. Unknown transport ids, and disconnects from a transport the
// peer has since replaced, are ignored.
func (r *Router) HandleDisconnect(transportID string) {
	r.mu.RLock()
	peerID, ok := r.transportPeer[transportID]
	current := r.peerTransport[peerID]
	roomID := r.peerRoom[peerID]
	r.mu.RUnlock()
	if !ok || current != transportID {
		return
	}
	r.removePeer(roomID, peerID)
}

func (r *Router) removePeer(roomID, peerID string) {
	r.mu.Lock()
	if mapped, ok := r.peerRoom[peerID]; ok {
		roomID = mapped
	}
	peers, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, ok := peers[peerID]; !ok {
		r.mu.Unlock()
		return
	}
	delete(peers, peerID)
	if len(peers) == 0 {
		delete(r.rooms, roomID)
	}
	delete(r.peerRoom, peerID)
	if tid, ok := r.peerTransport[peerID]; ok {
		delete(r.transportPeer, tid)
		delete(r.peerTransport, peerID)
	}
	remaining := len(peers)
	r.mu.Unlock()

	r.broadcast(roomID, Signal{Type: TypePeerLeft, RoomID: roomID, PeerID: peerID}, peerID)

	r.logger.Info("peer left room",
		zap.String("peer_id", peerID), zap.String("room_id", roomID), zap.Int("peers", remaining))
}

// Relay routes a signal. Negotiation messages with an explicit target go to
// that peer only; otherwise, and for media-state and screen-share messages,
// the signal is broadcast to every other peer in the room. Delivery is
// best-effort: offline targets are silently dropped.
func (r *Router) Relay(sig Signal) {
	switch sig.Type {
	case TypeOffer, TypeAnswer, TypeICECandidate:
		if sig.TargetPeerID != "" {
			r.SendToPeer(sig.RoomID, sig.TargetPeerID, sig)
			return
		}
		r.broadcast(sig.RoomID, sig, sig.PeerID)
	case TypeMediaStateChange, TypeStartScreenShare, TypeStopScreenShare:
		r.broadcast(sig.RoomID, sig, sig.PeerID)
	default:
		r.logger.Warn("unknown signal type", zap.String("type", sig.Type))
	}
}

// SendToPeer delivers a signal to a single peer in a room. Absent peers are
// silently dropped.
func (r *Router) SendToPeer(roomID, peerID string, sig Signal) {
	r.mu.RLock()
	s, ok := r.rooms[roomID][peerID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	if !s.Send(sig) {
		r.logger.Debug("dropped signal, peer buffer full",
			zap.String("peer_id", peerID), zap.String("type", sig.Type))
	}
}

// Peers returns the peer ids currently in a room.
func (r *Router) Peers(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	peers := r.rooms[roomID]
	out := make([]string, 0, len(peers))
	for id := range peers {
		out = append(out, id)
	}
	return out
}

// RoomCount returns the number of active rooms.
func (r *Router) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Router) broadcast(roomID string, sig Signal, excludePeerID string) {
	r.mu.RLock()
	peers := r.rooms[roomID]
	targets := make([]Sender, 0, len(peers))
	for id, s := range peers {
		if id != excludePeerID {
			targets = append(targets, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range targets {
		s.Send(sig)
	}
}
