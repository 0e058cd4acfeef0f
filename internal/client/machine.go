// Package client is the call-handling side of a signaling participant: a pure
// state machine over call events plus the runtime that executes its effects.
package client

import (
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/protocol"
)

type Status int

const (
	Idle Status = iota
	Calling
	Incoming
	Connected
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Calling:
		return "calling"
	case Incoming:
		return "incoming"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

type Role int

const (
	RoleDialer Role = iota
	RoleAnswerer
)

type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

// State is the client's view of its one call. Epoch increases with every new
// call attempt; asynchronous results carry the epoch they were started in.
type State struct {
	Status      Status
	Self        domain.ConnectionID
	PeerID      domain.TransportPeerID
	Counterpart domain.ConnectionID
	RemotePeer  domain.TransportPeerID
	Role        Role
	Epoch       uint64
	MediaReady  bool
	SessionUp   bool
	VideoOn     bool
	AudioOn     bool
}

type Event interface{ isEvent() }

// Local intents.
type (
	Dial        struct{ Target domain.ConnectionID }
	Accept      struct{}
	Reject      struct{}
	HangUp      struct{}
	ToggleVideo struct{}
	ToggleAudio struct{}
)

// Received from the coordinator.
type (
	Welcomed     struct{ Conn domain.ConnectionID }
	IncomingCall struct {
		From       domain.ConnectionID
		CallerPeer domain.TransportPeerID
	}
	CallAccepted struct {
		Answerer     domain.ConnectionID
		AnswererPeer domain.TransportPeerID
	}
	CallRejected struct{}
	CallFailed   struct{ Reason string }
	CallEnded    struct{}
	MediaFailed  struct{ From domain.ConnectionID }
)

// Produced by the runtime.
type (
	PeerReady          struct{ PeerID domain.TransportPeerID }
	MediaAcquired      struct{ Epoch uint64 }
	MediaAcquireFailed struct {
		Epoch uint64
		Err   error
	}
	SessionUp     struct{ Epoch uint64 }
	SessionFailed struct {
		Epoch uint64
		Err   error
	}
	Disconnected struct{}
)

func (Dial) isEvent()               {}
func (Accept) isEvent()             {}
func (Reject) isEvent()             {}
func (HangUp) isEvent()             {}
func (ToggleVideo) isEvent()        {}
func (ToggleAudio) isEvent()        {}
func (Welcomed) isEvent()           {}
func (IncomingCall) isEvent()       {}
func (CallAccepted) isEvent()       {}
func (CallRejected) isEvent()       {}
func (CallFailed) isEvent()         {}
func (CallEnded) isEvent()          {}
func (MediaFailed) isEvent()        {}
func (PeerReady) isEvent()          {}
func (MediaAcquired) isEvent()      {}
func (MediaAcquireFailed) isEvent() {}
func (SessionUp) isEvent()          {}
func (SessionFailed) isEvent()      {}
func (Disconnected) isEvent()       {}

type Effect interface{ isEffect() }

type (
	Send         struct{ Envelope protocol.Envelope }
	AcquireMedia struct{ Epoch uint64 }
	StartSession struct {
		Epoch      uint64
		Role       Role
		RemotePeer domain.TransportPeerID
	}
	// Release cancels pending work and closes every held media resource.
	Release struct{}
	// DiscardMedia closes a resource that arrived for a call already gone.
	DiscardMedia struct{ Epoch uint64 }
	Toggle       struct {
		Kind MediaKind
		On   bool
	}
	Report struct{ Message string }
)

func (Send) isEffect()         {}
func (AcquireMedia) isEffect() {}
func (StartSession) isEffect() {}
func (Release) isEffect()      {}
func (DiscardMedia) isEffect() {}
func (Toggle) isEffect()       {}
func (Report) isEffect()       {}

// Report messages.
const (
	MsgNotRegistered = "Transport not ready yet"
	MsgNoTarget      = "Pick someone to call"
	MsgRejected      = "Call rejected"
	MsgRemoteMedia   = "Remote side could not start media"
	MsgMediaFailed   = "Could not start media: "
)

// Transition is the whole call logic of a client. Events that make no sense
// in the current state are ignored and return the state unchanged.
func Transition(s State, ev Event) (State, []Effect) {
	switch e := ev.(type) {
	case Welcomed:
		s.Self = e.Conn
		if s.PeerID == "" {
			return s, nil
		}
		return s, []Effect{send(protocol.TypeRegisterPeer, protocol.RegisterPeer{TransportPeerID: s.PeerID})}

	case PeerReady:
		s.PeerID = e.PeerID
		return s, []Effect{send(protocol.TypeRegisterPeer, protocol.RegisterPeer{TransportPeerID: e.PeerID})}

	case Dial:
		if s.Status != Idle {
			return s, nil
		}
		if s.PeerID == "" {
			return s, []Effect{Report{Message: MsgNotRegistered}}
		}
		if e.Target == "" || e.Target == s.Self {
			return s, []Effect{Report{Message: MsgNoTarget}}
		}
		s = beginCall(s, Calling, RoleDialer, e.Target, "")
		return s, []Effect{send(protocol.TypeInitiateCall, protocol.InitiateCall{
			TargetConnectionID:    e.Target,
			CallerTransportPeerID: s.PeerID,
		})}

	case IncomingCall:
		if s.Status != Idle {
			return s, nil
		}
		return beginCall(s, Incoming, RoleAnswerer, e.From, e.CallerPeer), nil

	case Accept:
		if s.Status != Incoming {
			return s, nil
		}
		if s.PeerID == "" {
			return s, []Effect{Report{Message: MsgNotRegistered}}
		}
		s.Status = Connected
		return s, []Effect{
			send(protocol.TypeAcceptCall, protocol.AcceptCall{
				CallerConnectionID:      s.Counterpart,
				AnswererTransportPeerID: s.PeerID,
			}),
			AcquireMedia{Epoch: s.Epoch},
		}

	case Reject:
		if s.Status != Incoming {
			return s, nil
		}
		return idle(s, send(protocol.TypeRejectCall, protocol.RejectCall{CallerConnectionID: s.Counterpart}))

	case HangUp:
		switch s.Status {
		case Incoming:
			return idle(s, send(protocol.TypeRejectCall, protocol.RejectCall{CallerConnectionID: s.Counterpart}))
		case Calling, Connected:
			return idle(s, send(protocol.TypeEndCall, protocol.EndCall{OtherConnectionID: s.Counterpart}))
		}
		return s, nil

	case CallAccepted:
		if s.Status != Calling || e.Answerer != s.Counterpart {
			return s, nil
		}
		s.Status = Connected
		s.RemotePeer = e.AnswererPeer
		return s, []Effect{AcquireMedia{Epoch: s.Epoch}}

	case CallRejected:
		if s.Status != Calling {
			return s, nil
		}
		return idle(s, Report{Message: MsgRejected})

	case CallFailed:
		if s.Status != Calling {
			return s, nil
		}
		return idle(s, Report{Message: e.Reason})

	case CallEnded:
		if s.Status == Idle {
			return s, nil
		}
		return idle(s)

	case MediaFailed:
		if s.Status == Idle {
			return s, nil
		}
		return idle(s, Report{Message: MsgRemoteMedia})

	case Disconnected:
		s.Self = ""
		if s.Status == Idle {
			return s, nil
		}
		return idle(s)

	case MediaAcquired:
		if stale(s, e.Epoch) {
			return s, []Effect{DiscardMedia{Epoch: e.Epoch}}
		}
		s.MediaReady = true
		s.VideoOn, s.AudioOn = true, true
		return s, []Effect{StartSession{Epoch: s.Epoch, Role: s.Role, RemotePeer: s.RemotePeer}}

	case SessionUp:
		if stale(s, e.Epoch) {
			return s, []Effect{DiscardMedia{Epoch: e.Epoch}}
		}
		s.SessionUp = true
		return s, nil

	case MediaAcquireFailed:
		if stale(s, e.Epoch) {
			return s, nil
		}
		return failMedia(s, e.Err)

	case SessionFailed:
		if stale(s, e.Epoch) {
			return s, nil
		}
		return failMedia(s, e.Err)

	case ToggleVideo:
		if s.Status != Connected || !s.MediaReady {
			return s, nil
		}
		s.VideoOn = !s.VideoOn
		return s, []Effect{Toggle{Kind: KindVideo, On: s.VideoOn}}

	case ToggleAudio:
		if s.Status != Connected || !s.MediaReady {
			return s, nil
		}
		s.AudioOn = !s.AudioOn
		return s, []Effect{Toggle{Kind: KindAudio, On: s.AudioOn}}
	}
	return s, nil
}

func beginCall(s State, status Status, role Role, other domain.ConnectionID, remote domain.TransportPeerID) State {
	return State{
		Status:      status,
		Self:        s.Self,
		PeerID:      s.PeerID,
		Counterpart: other,
		RemotePeer:  remote,
		Role:        role,
		Epoch:       s.Epoch + 1,
	}
}

// idle resets the call fields. The message effects run before Release so the
// counterpart hears about the hang-up before local teardown.
func idle(s State, effects ...Effect) (State, []Effect) {
	next := State{Status: Idle, Self: s.Self, PeerID: s.PeerID, Epoch: s.Epoch}
	return next, append(effects, Release{})
}

func failMedia(s State, err error) (State, []Effect) {
	msg := MsgMediaFailed
	if err != nil {
		msg += err.Error()
	}
	return idle(s,
		send(protocol.TypeMediaFailed, protocol.EndCall{OtherConnectionID: s.Counterpart}),
		Report{Message: msg},
	)
}

func stale(s State, epoch uint64) bool {
	return s.Status != Connected || epoch != s.Epoch
}

func send(t protocol.Type, payload any) Send {
	return Send{Envelope: protocol.MustNew(t, payload)}
}
