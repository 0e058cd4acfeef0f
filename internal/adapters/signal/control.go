package signal

import (
	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/protocol"
)

func (ctl *SignalWSController) handlePing(sess core.Session) {
	ctl.sendEnvelope(sess, protocol.MustNew(protocol.TypePong, nil))
}
