// Package protocol defines the signaling wire format shared by the coordinator
// and the client runtime. Every frame is a JSON text message {"type", "data"}.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/peercall/internal/domain"
)

type Type string

// Client to server.
const (
	TypeRegisterPeer Type = "register-peer"
	TypeInitiateCall Type = "initiate-call"
	TypeAcceptCall   Type = "accept-call"
	TypeRejectCall   Type = "reject-call"
	TypeEndCall      Type = "end-call"
	TypeMediaFailed  Type = "media-failed"
	TypePing         Type = "ping"
)

// Server to client(s). TypeMediaFailed is used in both directions.
const (
	TypeWelcome        Type = "welcome"
	TypeOnlineUsers    Type = "getOnlineUsers"
	TypeUsersList      Type = "users-list"
	TypeUserJoined     Type = "user-joined"
	TypeUserLeft       Type = "user-left"
	TypePeerRegistered Type = "peer-registered"
	TypeIncomingCall   Type = "incoming-call"
	TypeCallAccepted   Type = "call-accepted"
	TypeCallRejected   Type = "call-rejected"
	TypeCallFailed     Type = "call-failed"
	TypeCallEnded      Type = "call-ended"
	TypePong           Type = "pong"
)

type Envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// New marshals payload into an envelope. A nil payload produces an envelope
// without data.
func New(t Type, payload any) (Envelope, error) {
	env := Envelope{Type: t}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	env.Data = raw
	return env, nil
}

// MustNew is New for payloads that are always marshalable (the structs below).
func MustNew(t Type, payload any) Envelope {
	env, err := New(t, payload)
	if err != nil {
		panic(err)
	}
	return env
}

func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing type")
	}
	return env, nil
}

// Bind unmarshals the envelope data into v.
func (e Envelope) Bind(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%s: bad payload: %w", e.Type, err)
	}
	return nil
}

type RegisterPeer struct {
	TransportPeerID domain.TransportPeerID `json:"transportPeerId"`
}

type InitiateCall struct {
	TargetConnectionID    domain.ConnectionID    `json:"targetConnectionId"`
	CallerTransportPeerID domain.TransportPeerID `json:"callerTransportPeerId"`
}

type AcceptCall struct {
	CallerConnectionID      domain.ConnectionID    `json:"callerConnectionId"`
	AnswererTransportPeerID domain.TransportPeerID `json:"answererTransportPeerId"`
}

type RejectCall struct {
	CallerConnectionID domain.ConnectionID `json:"callerConnectionId"`
}

// EndCall is also the payload of the client's media-failed notice.
type EndCall struct {
	OtherConnectionID domain.ConnectionID `json:"otherConnectionId"`
}

type Welcome struct {
	ConnectionID domain.ConnectionID `json:"connectionId"`
}

type IncomingCall struct {
	FromConnectionID      domain.ConnectionID    `json:"fromConnectionId"`
	CallerTransportPeerID domain.TransportPeerID `json:"callerTransportPeerId"`
	CallerConnectionID    domain.ConnectionID    `json:"callerConnectionId"`
}

type CallAccepted struct {
	AnswererTransportPeerID domain.TransportPeerID `json:"answererTransportPeerId"`
	AnswererConnectionID    domain.ConnectionID    `json:"answererConnectionId"`
}

type CallFailed struct {
	Reason string `json:"reason"`
}

type MediaFailed struct {
	FromConnectionID domain.ConnectionID `json:"fromConnectionId"`
}

type UserJoined struct {
	ConnectionID domain.ConnectionID      `json:"connectionId"`
	Record       domain.ParticipantRecord `json:"record"`
}

type UserLeft struct {
	ConnectionID domain.ConnectionID `json:"connectionId"`
}
