package orch

import (
	"fmt"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/metric"
	"github.com/dkeye/peercall/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Initiate places a call from caller. A refused initiation is answered with
// call-failed to the caller and is not an error.
func (o *Orchestrator) Initiate(caller domain.ConnectionID, p protocol.InitiateCall) error {
	call, err := o.Directory.StartCall(caller, p.TargetConnectionID)
	if err != nil {
		log.Info().Err(err).Str("module", "orch").Str("caller", string(caller)).
			Str("target", string(p.TargetConnectionID)).Msg("initiate refused")
		metric.CallOutcome(metric.OutcomeFailed)
		o.Out.SendTo(caller, protocol.MustNew(protocol.TypeCallFailed, protocol.CallFailed{
			Reason: domain.ReasonUnavailable,
		}))
		return nil
	}
	metric.CallStarted()
	o.arm(call.ID)

	o.Out.SendTo(call.Callee, protocol.MustNew(protocol.TypeIncomingCall, protocol.IncomingCall{
		FromConnectionID:      caller,
		CallerTransportPeerID: p.CallerTransportPeerID,
		CallerConnectionID:    caller,
	}))
	o.broadcastUsers()
	return nil
}

func (o *Orchestrator) Accept(callee domain.ConnectionID, p protocol.AcceptCall) error {
	call, err := o.Directory.AcceptCall(callee, p.CallerConnectionID)
	if err != nil {
		return fmt.Errorf("accept from %s: %w", callee, err)
	}
	o.disarm(call.ID)
	metric.CallOutcome(metric.OutcomeAccepted)
	o.Out.SendTo(call.Caller, protocol.MustNew(protocol.TypeCallAccepted, protocol.CallAccepted{
		AnswererTransportPeerID: p.AnswererTransportPeerID,
		AnswererConnectionID:    callee,
	}))
	return nil
}

func (o *Orchestrator) Reject(callee domain.ConnectionID, p protocol.RejectCall) error {
	call, err := o.Directory.RejectCall(callee, p.CallerConnectionID)
	if err != nil {
		return fmt.Errorf("reject from %s: %w", callee, err)
	}
	o.disarm(call.ID)
	metric.CallOutcome(metric.OutcomeRejected)
	o.Out.SendTo(call.Caller, protocol.MustNew(protocol.TypeCallRejected, nil))
	o.broadcastUsers()
	return nil
}

// End hangs up a pending or active call from either side.
func (o *Orchestrator) End(sender domain.ConnectionID, p protocol.EndCall) error {
	call, err := o.Directory.EndCall(sender, p.OtherConnectionID)
	if err != nil {
		return fmt.Errorf("end from %s: %w", sender, err)
	}
	o.disarm(call.ID)
	metric.CallOutcome(metric.OutcomeEnded)
	o.Out.SendTo(p.OtherConnectionID, protocol.MustNew(protocol.TypeCallEnded, nil))
	o.broadcastUsers()
	return nil
}
