package signaling

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu       sync.Mutex
	received []Signal
	full     bool
}

func (f *fakeSender) Send(sig Signal) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.received = append(f.received, sig)
	return true
}

func (f *fakeSender) signals() []Signal {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Signal, len(f.received))
	copy(out, f.received)
	return out
}

func (f *fakeSender) byType(t string) []Signal {
	var out []Signal
	for _, sig := range f.signals() {
		if sig.Type == t {
			out = append(out, sig)
		}
	}
	return out
}

func TestRouter_Join_FirstPeerCreatesRoom(t *testing.T) {
	req := require.New(t)
	router := NewRouter(nil)
	alice := &fakeSender{}

	// Given no room exists
	req.Equal(0, router.RoomCount())

	// When the first peer joins
	router.HandleJoin("room-1", "alice", PeerMeta{UserName: "Alice", IsCreator: true}, "t1", alice)

	// Then the room exists with that single peer
	req.Equal(1, router.RoomCount())
	req.ElementsMatch([]string{"alice"}, router.Peers("room-1"))

	// And the joiner got an empty peers snapshot
	lists := alice.byType(TypePeersList)
	req.Len(lists, 1)
	var snapshot []string
	req.NoError(json.Unmarshal(lists[0].Payload, &snapshot))
	req.Empty(snapshot)
}

func TestRouter_Join_LaterPeerGetsSnapshotAndOthersAreNotified(t *testing.T) {
	req := require.New(t)
	router := NewRouter(nil)
	alice := &fakeSender{}
	bob := &fakeSender{}

	// Given alice is alone in the room
	router.HandleJoin("room-1", "alice", PeerMeta{UserName: "Alice"}, "t1", alice)

	// When bob joins
	router.HandleJoin("room-1", "bob", PeerMeta{UserName: "Bob"}, "t2", bob)

	// Then bob's snapshot lists alice only
	lists := bob.byType(TypePeersList)
	req.Len(lists, 1)
	var snapshot []string
	req.NoError(json.Unmarshal(lists[0].Payload, &snapshot))
	req.ElementsMatch([]string{"alice"}, snapshot)

	// And alice was told about bob, bob was not told about himself
	joined := alice.byType(TypePeerJoined)
	req.Len(joined, 1)
	req.Equal("bob", joined[0].PeerID)
	req.Equal("Bob", joined[0].UserName)
	req.Empty(bob.byType(TypePeerJoined))
}

func TestRouter_Relay_TargetedOfferReachesOnlyTarget(t *testing.T) {
	req := require.New(t)
	router := NewRouter(nil)
	alice := &fakeSender{}
	bob := &fakeSender{}
	carol := &fakeSender{}
	router.HandleJoin("room-1", "alice", PeerMeta{}, "t1", alice)
	router.HandleJoin("room-1", "bob", PeerMeta{}, "t2", bob)
	router.HandleJoin("room-1", "carol", PeerMeta{}, "t3", carol)

	// When alice sends an offer targeted at bob
	router.Relay(Signal{Type: TypeOffer, RoomID: "room-1", PeerID: "alice", TargetPeerID: "bob"})

	// Then only bob receives it
	req.Len(bob.byType(TypeOffer), 1)
	req.Empty(alice.byType(TypeOffer))
	req.Empty(carol.byType(TypeOffer))
}

func TestRouter_Relay_MediaStateBroadcastsToEveryoneButSender(t *testing.T) {
	req := require.New(t)
	router := NewRouter(nil)
	alice := &fakeSender{}
	bob := &fakeSender{}
	carol := &fakeSender{}
	router.HandleJoin("room-1", "alice", PeerMeta{}, "t1", alice)
	router.HandleJoin("room-1", "bob", PeerMeta{}, "t2", bob)
	router.HandleJoin("room-1", "carol", PeerMeta{}, "t3", carol)

	// When alice changes her media state
	enabled := false
	router.Relay(Signal{Type: TypeMediaStateChange, RoomID: "room-1", PeerID: "alice", AudioEnabled: &enabled})

	// Then everyone but alice hears about it
	req.Empty(alice.byType(TypeMediaStateChange))
	req.Len(bob.byType(TypeMediaStateChange), 1)
	req.Len(carol.byType(TypeMediaStateChange), 1)
	req.NotNil(bob.byType(TypeMediaStateChange)[0].AudioEnabled)
	req.False(*bob.byType(TypeMediaStateChange)[0].AudioEnabled)
}

func TestRouter_Relay_ToAbsentTargetIsDropped(t *testing.T) {
	req := require.New(t)
	router := NewRouter(nil)
	alice := &fakeSender{}
	router.HandleJoin("room-1", "alice", PeerMeta{}, "t1", alice)

	// When alice targets a peer that already left
	router.Relay(Signal{Type: TypeAnswer, RoomID: "room-1", PeerID: "alice", TargetPeerID: "ghost"})

	// Then nothing blows up and nothing is delivered anywhere
	req.Empty(alice.byType(TypeAnswer))
}

func TestRouter_Leave_LastPeerTearsDownRoom(t *testing.T) {
	req := require.New(t)
	router := NewRouter(nil)
	alice := &fakeSender{}
	bob := &fakeSender{}
	router.HandleJoin("room-1", "alice", PeerMeta{}, "t1", alice)
	router.HandleJoin("room-1", "bob", PeerMeta{}, "t2", bob)

	// When both peers leave
	router.HandleLeave("room-1", "alice")
	router.HandleLeave("room-1", "bob")

	// Then the room is gone
	req.Equal(0, router.RoomCount())
	req.Empty(router.Peers("room-1"))

	// And bob heard alice leave before he left himself
	left := bob.byType(TypePeerLeft)
	req.Len(left, 1)
	req.Equal("alice", left[0].PeerID)
}

func TestRouter_Leave_IsIdempotent(t *testing.T) {
	req := require.New(t)
	router := NewRouter(nil)
	alice := &fakeSender{}
	bob := &fakeSender{}
	router.HandleJoin("room-1", "alice", PeerMeta{}, "t1", alice)
	router.HandleJoin("room-1", "bob", PeerMeta{}, "t2", bob)

	// When alice leaves twice
	router.HandleLeave("room-1", "alice")
	router.HandleLeave("room-1", "alice")

	// Then bob got exactly one peer-left
	req.Len(bob.byType(TypePeerLeft), 1)
	req.ElementsMatch([]string{"bob"}, router.Peers("room-1"))
}

func TestRouter_RoomCanBeRecreatedAfterTeardown(t *testing.T) {
	req := require.New(t)
	router := NewRouter(nil)
	alice := &fakeSender{}

	router.HandleJoin("room-1", "alice", PeerMeta{}, "t1", alice)
	router.HandleLeave("room-1", "alice")
	req.Equal(0, router.RoomCount())

	// When a peer joins the same room id again
	again := &fakeSender{}
	router.HandleJoin("room-1", "alice", PeerMeta{}, "t2", again)

	// Then a fresh room exists with no stale members
	req.Equal(1, router.RoomCount())
	req.ElementsMatch([]string{"alice"}, router.Peers("room-1"))
}

func TestRouter_Disconnect_ResolvesTransportToPeer(t *testing.T) {
	req := require.New(t)
	router := NewRouter(nil)
	alice := &fakeSender{}
	bob := &fakeSender{}
	router.HandleJoin("room-1", "alice", PeerMeta{}, "t1", alice)
	router.HandleJoin("room-1", "bob", PeerMeta{}, "t2", bob)

	// When alice's transport drops without a leave message
	router.HandleDisconnect("t1")

	// Then she is removed and bob is notified
	req.ElementsMatch([]string{"bob"}, router.Peers("room-1"))
	left := bob.byType(TypePeerLeft)
	req.Len(left, 1)
	req.Equal("alice", left[0].PeerID)

	// And an unknown transport id is ignored
	router.HandleDisconnect("t-unknown")
	req.ElementsMatch([]string{"bob"}, router.Peers("room-1"))
}

func TestRouter_Reconnect_StaleTransportDisconnectIsIgnored(t *testing.T) {
	req := require.New(t)
	router := NewRouter(nil)
	first := &fakeSender{}
	second := &fakeSender{}

	// Given alice joined on one transport and reconnected on another
	router.HandleJoin("room-1", "alice", PeerMeta{}, "t1", first)
	router.HandleJoin("room-1", "alice", PeerMeta{}, "t2", second)
	req.ElementsMatch([]string{"alice"}, router.Peers("room-1"))

	// When the abandoned transport finally times out
	router.HandleDisconnect("t1")

	// Then the reconnected peer is still in the room
	req.ElementsMatch([]string{"alice"}, router.Peers("room-1"))

	// And signals reach the new connection, not the old one
	router.SendToPeer("room-1", "alice", Signal{Type: TypeControl, RoomID: "room-1"})
	req.Empty(first.byType(TypeControl))
	req.Len(second.byType(TypeControl), 1)

	// And the live transport's disconnect still removes the peer
	router.HandleDisconnect("t2")
	req.Empty(router.Peers("room-1"))
	req.Equal(0, router.RoomCount())
}

func TestRouter_SendToPeer_FullBufferDoesNotBlock(t *testing.T) {
	req := require.New(t)
	router := NewRouter(nil)
	alice := &fakeSender{full: true}
	router.HandleJoin("room-1", "alice", PeerMeta{}, "t1", alice)

	// When a signal is pushed at a peer whose buffer is full
	router.SendToPeer("room-1", "alice", Signal{Type: TypeControl, RoomID: "room-1"})

	// Then it is dropped and the peer stays in the room
	req.Empty(alice.byType(TypeControl))
	req.ElementsMatch([]string{"alice"}, router.Peers("room-1"))
}
