// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen = 64
	MaxPeerIDLen = 128
)

var (
	ErrUserIDTooLong = errors.New("user id too long")
	ErrPeerIDTooLong = errors.New("transport peer id too long")
	ErrPeerIDEmpty   = errors.New("transport peer id empty")
)

// ConnectionID is assigned by the server for the lifetime of one live connection.
type ConnectionID string

// LogicalUserID is the durable identity owned by the chat/identity subsystem.
type LogicalUserID string

// TransportPeerID addresses a client inside the media transport.
type TransportPeerID string

// NewConnectionID is a tiny helper to avoid ad-hoc uuid calls in adapters.
func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}

// ParseLogicalUserID trims the handshake value. Empty input is valid and means
// the connection is anonymous for presence purposes.
func ParseLogicalUserID(raw string) (LogicalUserID, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > MaxUserIDLen {
		return "", ErrUserIDTooLong
	}
	return LogicalUserID(raw), nil
}

func ParseTransportPeerID(raw string) (TransportPeerID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrPeerIDEmpty
	}
	if len(raw) > MaxPeerIDLen {
		return "", ErrPeerIDTooLong
	}
	return TransportPeerID(raw), nil
}
