package signal

import (
	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/protocol"
)

func (ctl *SignalWSController) handleRegisterPeer(sess core.Session, env protocol.Envelope) error {
	var p protocol.RegisterPeer
	if err := env.Bind(&p); err != nil {
		return err
	}
	return ctl.Orch.RegisterPeer(sess.ID(), p)
}

func (ctl *SignalWSController) handleInitiate(sess core.Session, env protocol.Envelope) error {
	var p protocol.InitiateCall
	if err := env.Bind(&p); err != nil {
		return err
	}
	return ctl.Orch.Initiate(sess.ID(), p)
}

func (ctl *SignalWSController) handleAccept(sess core.Session, env protocol.Envelope) error {
	var p protocol.AcceptCall
	if err := env.Bind(&p); err != nil {
		return err
	}
	return ctl.Orch.Accept(sess.ID(), p)
}

func (ctl *SignalWSController) handleReject(sess core.Session, env protocol.Envelope) error {
	var p protocol.RejectCall
	if err := env.Bind(&p); err != nil {
		return err
	}
	return ctl.Orch.Reject(sess.ID(), p)
}

func (ctl *SignalWSController) handleEnd(sess core.Session, env protocol.Envelope) error {
	var p protocol.EndCall
	if err := env.Bind(&p); err != nil {
		return err
	}
	return ctl.Orch.End(sess.ID(), p)
}

func (ctl *SignalWSController) handleMediaFailed(sess core.Session, env protocol.Envelope) error {
	var p protocol.EndCall
	if err := env.Bind(&p); err != nil {
		return err
	}
	return ctl.Orch.MediaFailed(sess.ID(), p)
}
