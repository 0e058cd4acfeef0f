package core

import (
	"context"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/protocol"
)

// Outbox is what the coordinator needs from the real-time transport: targeted
// delivery to one connection and broadcast to every live connection.
// Delivery is best effort; unknown targets are ignored.
type Outbox interface {
	SendTo(conn domain.ConnectionID, env protocol.Envelope)
	Broadcast(env protocol.Envelope, except ...domain.ConnectionID)
}

// PresenceStore mirrors the set of online logical users outside the process.
type PresenceStore interface {
	Replace(ctx context.Context, online []domain.LogicalUserID) error
	Online(ctx context.Context) ([]domain.LogicalUserID, error)
	Close() error
}
