package signal

import (
	"errors"

	"github.com/dkeye/peercall/internal/app"
	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/metric"
	"github.com/dkeye/peercall/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Outbox delivers coordinator messages over the registered WebSocket
// sessions. Frames are encoded once per message.
type Outbox struct {
	Registry *app.Registry
	Policy   app.Policy
}

func NewOutbox(registry *app.Registry, policy app.Policy) *Outbox {
	return &Outbox{Registry: registry, Policy: policy}
}

func (o *Outbox) SendTo(conn domain.ConnectionID, env protocol.Envelope) {
	sess, ok := o.Registry.GetSession(conn)
	if !ok {
		log.Debug().Str("module", "signal.outbox").Str("conn", string(conn)).Str("type", string(env.Type)).Msg("target gone")
		return
	}
	frame, ok := encode(env)
	if !ok {
		return
	}
	o.deliver(sess, frame, env.Type)
}

func (o *Outbox) Broadcast(env protocol.Envelope, except ...domain.ConnectionID) {
	frame, ok := encode(env)
	if !ok {
		return
	}
next:
	for _, sess := range o.Registry.Sessions() {
		for _, skip := range except {
			if sess.ID() == skip {
				continue next
			}
		}
		o.deliver(sess, frame, env.Type)
	}
}

func (o *Outbox) deliver(sess core.Session, frame core.Frame, t protocol.Type) {
	err := sess.Signal().TrySend(frame)
	switch {
	case err == nil:
	case errors.Is(err, ErrBackpressure):
		metric.IncrementDroppedFrames()
		log.Warn().Str("module", "signal.outbox").Str("conn", string(sess.ID())).Str("type", string(t)).Msg("send buffer full, frame dropped")
		if o.Policy != nil && o.Policy.OnBackPressure(sess) == app.KickMember {
			o.Registry.Cancel(sess.ID())
		}
	default:
		log.Debug().Err(err).Str("module", "signal.outbox").Str("conn", string(sess.ID())).Msg("deliver")
	}
}

func encode(env protocol.Envelope) (core.Frame, bool) {
	b, err := env.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "signal.outbox").Str("type", string(env.Type)).Msg("encode")
		return nil, false
	}
	return b, true
}
