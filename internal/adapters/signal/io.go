package signal

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.Opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, sess core.Session, c *WsSignalConn) {
	id := sess.ID()
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(id)).Msg("readPump closing")
		ctl.disconnect(sess, c)
	}()

	wait := ctl.Opts.pongWait()
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	ctl.Orch.OnConnect(ctx, id, sess.User())

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(id)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("readPump read error")
				}
				return
			}
			ctl.handleSignal(sess, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(sess core.Session, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "signal").Str("conn", string(sess.ID())).
				Interface("panic", r).Msg("signal handler panic")
		}
	}()

	env, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(sess.ID())).Msg("bad frame")
		return
	}

	switch env.Type {
	case protocol.TypeRegisterPeer:
		err = ctl.handleRegisterPeer(sess, env)
	case protocol.TypeInitiateCall:
		err = ctl.handleInitiate(sess, env)
	case protocol.TypeAcceptCall:
		err = ctl.handleAccept(sess, env)
	case protocol.TypeRejectCall:
		err = ctl.handleReject(sess, env)
	case protocol.TypeEndCall:
		err = ctl.handleEnd(sess, env)
	case protocol.TypeMediaFailed:
		err = ctl.handleMediaFailed(sess, env)
	case protocol.TypePing:
		ctl.handlePing(sess)
	default:
		log.Warn().Str("module", "signal").Str("type", string(env.Type)).Msg("unknown signal")
		return
	}
	if err == nil {
		return
	}
	if errors.Is(err, domain.ErrNoSuchCall) || errors.Is(err, domain.ErrUnknownConnection) {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(sess.ID())).
			Str("type", string(env.Type)).Msg("stale event ignored")
		return
	}
	log.Warn().Err(err).Str("module", "signal").Str("conn", string(sess.ID())).
		Str("type", string(env.Type)).Msg("event rejected")
}

func (ctl *SignalWSController) sendEnvelope(sess core.Session, env protocol.Envelope) {
	b, err := env.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendEnvelope encode")
		return
	}
	if err := sess.Signal().TrySend(b); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(sess.ID())).Msg("sendEnvelope")
	}
}
