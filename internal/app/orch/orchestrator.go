package orch

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/peercall/internal/app"
	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/metric"
	"github.com/dkeye/peercall/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Orchestrator reacts to connection lifecycle and call events. State lives in
// Presence and Directory; the orchestrator only decides who hears what.
type Orchestrator struct {
	Presence  *app.Presence
	Directory *app.Directory
	Out       core.Outbox
	// RingTimeout ends calls left pending for this long. Zero disables it.
	RingTimeout time.Duration

	timersMu sync.Mutex
	timers   map[domain.CallID]*time.Timer
}

func New(presence *app.Presence, dir *app.Directory, out core.Outbox, ringTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		Presence:    presence,
		Directory:   dir,
		Out:         out,
		RingTimeout: ringTimeout,
		timers:      make(map[domain.CallID]*time.Timer),
	}
}

func (o *Orchestrator) OnConnect(ctx context.Context, conn domain.ConnectionID, user domain.LogicalUserID) {
	online := o.Presence.Add(ctx, conn, user)
	metric.SetOnlineUsers(len(online))
	o.Out.Broadcast(protocol.MustNew(protocol.TypeOnlineUsers, online))

	rec := o.Directory.Add(conn)
	o.Out.SendTo(conn, protocol.MustNew(protocol.TypeWelcome, protocol.Welcome{ConnectionID: conn}))
	o.Out.SendTo(conn, o.usersList())
	o.Out.Broadcast(protocol.MustNew(protocol.TypeUserJoined, protocol.UserJoined{
		ConnectionID: conn,
		Record:       rec,
	}), conn)

	log.Info().Str("module", "orch").Str("conn", string(conn)).Str("user", string(user)).Msg("connected")
}

func (o *Orchestrator) OnDisconnect(ctx context.Context, conn domain.ConnectionID) {
	online := o.Presence.Remove(ctx, conn)
	metric.SetOnlineUsers(len(online))
	o.Out.Broadcast(protocol.MustNew(protocol.TypeOnlineUsers, online), conn)

	res, ok := o.Directory.Remove(conn)
	if !ok {
		log.Debug().Str("module", "orch").Str("conn", string(conn)).Msg("disconnect of unknown connection")
		return
	}
	if res.Call != nil {
		o.disarm(res.Call.ID)
		metric.CallOutcome(metric.OutcomeAbandoned)
	}
	switch {
	case res.Inconsistent:
		ev := log.Warn().Str("module", "orch").Str("conn", string(conn)).Str("call", string(res.Record.CallID))
		if res.Call != nil {
			other, _ := res.Call.Counterpart(conn)
			ev = ev.Str("counterpart", string(other))
		}
		ev.Msg("disconnect: call state inconsistent, counterpart not notified")
	case res.Counterpart != "":
		o.Out.SendTo(res.Counterpart, protocol.MustNew(protocol.TypeCallEnded, nil))
		log.Info().Str("module", "orch").Str("conn", string(conn)).
			Str("counterpart", string(res.Counterpart)).Msg("call ended by disconnect")
	}

	o.Out.Broadcast(o.usersList(), conn)
	o.Out.Broadcast(protocol.MustNew(protocol.TypeUserLeft, protocol.UserLeft{ConnectionID: conn}), conn)
	log.Info().Str("module", "orch").Str("conn", string(conn)).Msg("disconnected")
}

// RegisterPeer stores the transport peer id of conn and announces it.
func (o *Orchestrator) RegisterPeer(conn domain.ConnectionID, p protocol.RegisterPeer) error {
	peer, err := domain.ParseTransportPeerID(string(p.TransportPeerID))
	if err != nil {
		return err
	}
	rec, ok := o.Directory.RegisterPeer(conn, peer)
	if !ok {
		return domain.ErrUnknownConnection
	}
	o.Out.Broadcast(protocol.MustNew(protocol.TypePeerRegistered, rec))
	return nil
}

func (o *Orchestrator) usersList() protocol.Envelope {
	return protocol.MustNew(protocol.TypeUsersList, o.Directory.Snapshot())
}

func (o *Orchestrator) broadcastUsers() {
	o.Out.Broadcast(o.usersList())
}
