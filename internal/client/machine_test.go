package client

import (
	"errors"
	"testing"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registered() State {
	return State{Self: "me", PeerID: "peer-me"}
}

func run(t *testing.T, s State, events ...Event) (State, []Effect) {
	t.Helper()
	var all []Effect
	for _, ev := range events {
		var effs []Effect
		s, effs = Transition(s, ev)
		all = append(all, effs...)
	}
	return s, all
}

func sentTypes(effs []Effect) []protocol.Type {
	var out []protocol.Type
	for _, e := range effs {
		if s, ok := e.(Send); ok {
			out = append(out, s.Envelope.Type)
		}
	}
	return out
}

func hasEffect[T Effect](effs []Effect) bool {
	for _, e := range effs {
		if _, ok := e.(T); ok {
			return true
		}
	}
	return false
}

func TestDialRequiresPeerID(t *testing.T) {
	s, effs := Transition(State{Self: "me"}, Dial{Target: "bob"})
	assert.Equal(t, Idle, s.Status)
	require.Len(t, effs, 1)
	assert.Equal(t, Report{Message: MsgNotRegistered}, effs[0])
}

func TestDialSelfOrEmpty(t *testing.T) {
	for _, target := range []domain.ConnectionID{"", "me"} {
		s, effs := Transition(registered(), Dial{Target: target})
		assert.Equal(t, Idle, s.Status)
		assert.Equal(t, []Effect{Report{Message: MsgNoTarget}}, effs)
	}
}

func TestDialerHappyPath(t *testing.T) {
	s, effs := Transition(registered(), Dial{Target: "bob"})
	assert.Equal(t, Calling, s.Status)
	assert.Equal(t, domain.ConnectionID("bob"), s.Counterpart)
	assert.Equal(t, uint64(1), s.Epoch)
	require.Len(t, effs, 1)
	var ic protocol.InitiateCall
	require.NoError(t, effs[0].(Send).Envelope.Bind(&ic))
	assert.Equal(t, protocol.InitiateCall{TargetConnectionID: "bob", CallerTransportPeerID: "peer-me"}, ic)

	s, effs = Transition(s, CallAccepted{Answerer: "bob", AnswererPeer: "peer-bob"})
	assert.Equal(t, Connected, s.Status)
	assert.Equal(t, []Effect{AcquireMedia{Epoch: 1}}, effs)

	s, effs = Transition(s, MediaAcquired{Epoch: 1})
	assert.True(t, s.MediaReady)
	assert.Equal(t, []Effect{StartSession{Epoch: 1, Role: RoleDialer, RemotePeer: "peer-bob"}}, effs)

	s, effs = Transition(s, SessionUp{Epoch: 1})
	assert.True(t, s.SessionUp)
	assert.Empty(t, effs)
}

func TestCallAcceptedFromStranger(t *testing.T) {
	s, _ := Transition(registered(), Dial{Target: "bob"})
	s, effs := Transition(s, CallAccepted{Answerer: "eve", AnswererPeer: "peer-eve"})
	assert.Equal(t, Calling, s.Status)
	assert.Empty(t, effs)
}

func TestAnswererHappyPath(t *testing.T) {
	s, effs := Transition(registered(), IncomingCall{From: "alice", CallerPeer: "peer-alice"})
	assert.Equal(t, Incoming, s.Status)
	assert.Empty(t, effs)

	s, effs = Transition(s, Accept{})
	assert.Equal(t, Connected, s.Status)
	assert.Equal(t, []protocol.Type{protocol.TypeAcceptCall}, sentTypes(effs))
	var ac protocol.AcceptCall
	require.NoError(t, effs[0].(Send).Envelope.Bind(&ac))
	assert.Equal(t, protocol.AcceptCall{CallerConnectionID: "alice", AnswererTransportPeerID: "peer-me"}, ac)
	assert.True(t, hasEffect[AcquireMedia](effs))

	_, effs = Transition(s, MediaAcquired{Epoch: s.Epoch})
	assert.Equal(t, []Effect{StartSession{Epoch: s.Epoch, Role: RoleAnswerer, RemotePeer: "peer-alice"}}, effs)
}

func TestIncomingWhileBusyIgnored(t *testing.T) {
	s, _ := Transition(registered(), Dial{Target: "bob"})
	next, effs := Transition(s, IncomingCall{From: "carol"})
	assert.Equal(t, s, next)
	assert.Empty(t, effs)
}

func TestEveryReturnToIdleReleases(t *testing.T) {
	calling := func() State { s, _ := Transition(registered(), Dial{Target: "bob"}); return s }
	incoming := func() State { s, _ := Transition(registered(), IncomingCall{From: "bob"}); return s }
	connected := func() State {
		s, _ := run(t, registered(), Dial{Target: "bob"}, CallAccepted{Answerer: "bob", AnswererPeer: "pb"})
		return s
	}

	tests := []struct {
		name      string
		from      State
		ev        Event
		wantSent  []protocol.Type
		wantReport bool
	}{
		{"incoming reject", incoming(), Reject{}, []protocol.Type{protocol.TypeRejectCall}, false},
		{"incoming hangup", incoming(), HangUp{}, []protocol.Type{protocol.TypeRejectCall}, false},
		{"incoming caller gave up", incoming(), CallEnded{}, nil, false},
		{"calling rejected", calling(), CallRejected{}, nil, true},
		{"calling failed", calling(), CallFailed{Reason: domain.ReasonUnavailable}, nil, true},
		{"calling hangup", calling(), HangUp{}, []protocol.Type{protocol.TypeEndCall}, false},
		{"connected hangup", connected(), HangUp{}, []protocol.Type{protocol.TypeEndCall}, false},
		{"connected ended", connected(), CallEnded{}, nil, false},
		{"connected remote media failed", connected(), MediaFailed{From: "bob"}, nil, true},
		{"connected disconnected", connected(), Disconnected{}, nil, false},
		{"connected acquire failed", connected(), MediaAcquireFailed{Epoch: 1, Err: errors.New("no camera")}, []protocol.Type{protocol.TypeMediaFailed}, true},
		{"connected session failed", connected(), SessionFailed{Epoch: 1, Err: errors.New("ice failed")}, []protocol.Type{protocol.TypeMediaFailed}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, effs := Transition(tt.from, tt.ev)
			assert.Equal(t, Idle, s.Status)
			assert.Empty(t, s.Counterpart)
			assert.Empty(t, s.RemotePeer)
			assert.False(t, s.MediaReady)
			assert.Equal(t, tt.from.PeerID, s.PeerID, "peer id survives the call")
			assert.Equal(t, tt.wantSent, sentTypes(effs))
			assert.Equal(t, tt.wantReport, hasEffect[Report](effs))
			require.NotEmpty(t, effs)
			assert.Equal(t, Release{}, effs[len(effs)-1], "release is the last effect")
		})
	}
}

func TestCallFailedReportsReason(t *testing.T) {
	s, _ := Transition(registered(), Dial{Target: "bob"})
	_, effs := Transition(s, CallFailed{Reason: "User busy or not available"})
	assert.Contains(t, effs, Report{Message: "User busy or not available"})
}

func TestStaleMediaIsDiscarded(t *testing.T) {
	s, _ := run(t, registered(), Dial{Target: "bob"}, CallAccepted{Answerer: "bob", AnswererPeer: "pb"})
	require.Equal(t, uint64(1), s.Epoch)

	// Hang up before acquisition finished, then place a new call.
	s, _ = run(t, s, HangUp{}, Dial{Target: "carol"}, CallAccepted{Answerer: "carol", AnswererPeer: "pc"})
	require.Equal(t, uint64(2), s.Epoch)

	next, effs := Transition(s, MediaAcquired{Epoch: 1})
	assert.Equal(t, []Effect{DiscardMedia{Epoch: 1}}, effs)
	assert.False(t, next.MediaReady)

	next, effs = Transition(s, SessionUp{Epoch: 1})
	assert.Equal(t, []Effect{DiscardMedia{Epoch: 1}}, effs)
	assert.False(t, next.SessionUp)

	next, effs = Transition(s, MediaAcquireFailed{Epoch: 1, Err: errors.New("late")})
	assert.Equal(t, s, next, "stale failure does not end the current call")
	assert.Empty(t, effs)
}

func TestMediaAcquiredWhileIdleIsDiscarded(t *testing.T) {
	s, _ := run(t, registered(), Dial{Target: "bob"}, CallAccepted{Answerer: "bob", AnswererPeer: "pb"}, CallEnded{})
	_, effs := Transition(s, MediaAcquired{Epoch: s.Epoch})
	assert.Equal(t, []Effect{DiscardMedia{Epoch: s.Epoch}}, effs)
}

func TestToggle(t *testing.T) {
	s, effs := Transition(registered(), ToggleVideo{})
	assert.Empty(t, effs, "no media, nothing to toggle")
	assert.False(t, s.VideoOn)

	s, _ = run(t, registered(), Dial{Target: "bob"}, CallAccepted{Answerer: "bob", AnswererPeer: "pb"}, MediaAcquired{Epoch: 1})
	require.True(t, s.VideoOn)

	s, effs = Transition(s, ToggleVideo{})
	assert.False(t, s.VideoOn)
	assert.Equal(t, []Effect{Toggle{Kind: KindVideo, On: false}}, effs)

	s, effs = Transition(s, ToggleAudio{})
	assert.False(t, s.AudioOn)
	assert.Equal(t, []Effect{Toggle{Kind: KindAudio, On: false}}, effs)
}

func TestPeerReadyAndWelcomeRegister(t *testing.T) {
	s, effs := Transition(State{}, Welcomed{Conn: "me"})
	assert.Equal(t, domain.ConnectionID("me"), s.Self)
	assert.Empty(t, effs, "nothing to register yet")

	s, effs = Transition(s, PeerReady{PeerID: "peer-me"})
	assert.Equal(t, []protocol.Type{protocol.TypeRegisterPeer}, sentTypes(effs))

	s, _ = Transition(s, Disconnected{})
	assert.Empty(t, s.Self)
	_, effs = Transition(s, Welcomed{Conn: "me-again"})
	assert.Equal(t, []protocol.Type{protocol.TypeRegisterPeer}, sentTypes(effs), "re-register after reconnect")
}

func TestIgnoredEvents(t *testing.T) {
	idle := registered()
	for _, ev := range []Event{Accept{}, Reject{}, HangUp{}, CallAccepted{}, CallRejected{}, CallFailed{}, CallEnded{}, MediaFailed{}, SessionUp{Epoch: 0}} {
		next, effs := Transition(idle, ev)
		assert.Equal(t, idle, next, "%T", ev)
		if _, isSession := ev.(SessionUp); !isSession {
			assert.Empty(t, effs, "%T", ev)
		}
	}
}
