package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrTargetUnavailable = errors.New("target busy or not available")
	ErrCallerBusy        = errors.New("caller already in a call")
	ErrSelfCall          = errors.New("cannot call yourself")
	ErrNoSuchCall        = errors.New("no call between participants")
)

// ReasonUnavailable is sent verbatim in call-failed when initiation is refused.
const (
	ReasonUnavailable = "User busy or not available"
	ReasonNoAnswer    = "No answer"
)

type CallID string

type CallState int

const (
	CallPending CallState = iota
	CallActive
)

func (s CallState) String() string {
	switch s {
	case CallPending:
		return "pending"
	case CallActive:
		return "active"
	default:
		return "unknown"
	}
}

// Call pairs exactly two connections. It lives only as long as both ends are
// marked in-call.
type Call struct {
	ID        CallID
	Caller    ConnectionID
	Callee    ConnectionID
	State     CallState
	CreatedAt time.Time
}

func NewCall(caller, callee ConnectionID) *Call {
	return &Call{
		ID:        CallID(uuid.NewString()),
		Caller:    caller,
		Callee:    callee,
		State:     CallPending,
		CreatedAt: time.Now(),
	}
}

// Counterpart returns the other side of the call and false if conn is not a member.
func (c Call) Counterpart(conn ConnectionID) (ConnectionID, bool) {
	switch conn {
	case c.Caller:
		return c.Callee, true
	case c.Callee:
		return c.Caller, true
	default:
		return "", false
	}
}

// Between reports whether the call joins a and b in either direction.
func (c Call) Between(a, b ConnectionID) bool {
	return (c.Caller == a && c.Callee == b) || (c.Caller == b && c.Callee == a)
}
