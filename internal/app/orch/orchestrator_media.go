package orch

import (
	"fmt"
	"time"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/metric"
	"github.com/dkeye/peercall/internal/protocol"
	"github.com/rs/zerolog/log"
)

// MediaFailed ends the call of sender after its local media or transport
// session could not be set up, and tells the counterpart why.
func (o *Orchestrator) MediaFailed(sender domain.ConnectionID, p protocol.EndCall) error {
	call, err := o.Directory.EndCall(sender, p.OtherConnectionID)
	if err != nil {
		return fmt.Errorf("media-failed from %s: %w", sender, err)
	}
	o.disarm(call.ID)
	metric.CallOutcome(metric.OutcomeMedia)
	o.Out.SendTo(p.OtherConnectionID, protocol.MustNew(protocol.TypeMediaFailed, protocol.MediaFailed{
		FromConnectionID: sender,
	}))
	o.broadcastUsers()
	log.Info().Str("module", "orch").Str("conn", string(sender)).Str("call", string(call.ID)).Msg("call ended: media failed")
	return nil
}

func (o *Orchestrator) arm(id domain.CallID) {
	if o.RingTimeout <= 0 {
		return
	}
	o.timersMu.Lock()
	defer o.timersMu.Unlock()
	o.timers[id] = time.AfterFunc(o.RingTimeout, func() { o.expire(id) })
}

func (o *Orchestrator) disarm(id domain.CallID) {
	o.timersMu.Lock()
	defer o.timersMu.Unlock()
	if t, ok := o.timers[id]; ok {
		t.Stop()
		delete(o.timers, id)
	}
}

// PendingTimers reports how many ring timers are armed.
func (o *Orchestrator) PendingTimers() int {
	o.timersMu.Lock()
	defer o.timersMu.Unlock()
	return len(o.timers)
}

func (o *Orchestrator) expire(id domain.CallID) {
	o.timersMu.Lock()
	delete(o.timers, id)
	o.timersMu.Unlock()

	call, ok := o.Directory.ExpireCall(id)
	if !ok {
		return
	}
	metric.CallOutcome(metric.OutcomeNoAnswer)
	o.Out.SendTo(call.Caller, protocol.MustNew(protocol.TypeCallFailed, protocol.CallFailed{
		Reason: domain.ReasonNoAnswer,
	}))
	o.Out.SendTo(call.Callee, protocol.MustNew(protocol.TypeCallEnded, nil))
	o.broadcastUsers()
	log.Info().Str("module", "orch").Str("call", string(call.ID)).Msg("call not answered")
}

// Stop disarms every ring timer.
func (o *Orchestrator) Stop() {
	o.timersMu.Lock()
	defer o.timersMu.Unlock()
	for id, t := range o.timers {
		t.Stop()
		delete(o.timers, id)
	}
}
