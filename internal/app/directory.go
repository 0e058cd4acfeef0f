package app

import (
	"sort"
	"sync"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/rs/zerolog/log"
)

// Directory is the authoritative signaling state: one record per live
// connection plus the table of pending and active calls. Every method runs
// in a single critical section, so no caller ever observes one side of a
// call marked and the other not.
type Directory struct {
	mu      sync.Mutex
	records map[domain.ConnectionID]*domain.ParticipantRecord
	calls   map[domain.CallID]*domain.Call
}

func NewDirectory() *Directory {
	return &Directory{
		records: make(map[domain.ConnectionID]*domain.ParticipantRecord),
		calls:   make(map[domain.CallID]*domain.Call),
	}
}

// DisconnectResult describes what Remove had to clean up.
type DisconnectResult struct {
	Record domain.ParticipantRecord
	// Call is set when the removed connection was in a call.
	Call *domain.Call
	// Counterpart is set when the other side was found and released; it must
	// receive call-ended.
	Counterpart domain.ConnectionID
	// Inconsistent is set when the call table and the records disagreed.
	Inconsistent bool
}

func (d *Directory) Add(conn domain.ConnectionID) domain.ParticipantRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.records[conn]
	if !ok {
		rec = domain.NewParticipant(conn)
		d.records[conn] = rec
	}
	log.Debug().Str("module", "app.directory").Str("conn", string(conn)).Msg("participant added")
	return *rec
}

func (d *Directory) Get(conn domain.ConnectionID) (domain.ParticipantRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.records[conn]
	if !ok {
		return domain.ParticipantRecord{}, false
	}
	return *rec, true
}

// RegisterPeer is a no-op returning false when conn is unknown.
func (d *Directory) RegisterPeer(conn domain.ConnectionID, peer domain.TransportPeerID) (domain.ParticipantRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.records[conn]
	if !ok {
		return domain.ParticipantRecord{}, false
	}
	rec.TransportPeerID = peer
	return *rec, true
}

// Snapshot returns copies of every record ordered by connection id.
func (d *Directory) Snapshot() []domain.ParticipantRecord {
	d.mu.Lock()
	out := make([]domain.ParticipantRecord, 0, len(d.records))
	for _, rec := range d.records {
		out = append(out, *rec)
	}
	d.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Connection < out[j].Connection })
	return out
}

func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.records)
}

func (d *Directory) ActiveCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func (d *Directory) CallOf(conn domain.ConnectionID) (domain.Call, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	call := d.callOfLocked(conn)
	if call == nil {
		return domain.Call{}, false
	}
	return *call, true
}

// StartCall checks that both sides exist and are idle, then marks both as in
// call with a new pending call.
func (d *Directory) StartCall(caller, target domain.ConnectionID) (domain.Call, error) {
	if caller == target {
		return domain.Call{}, domain.ErrSelfCall
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	crec, ok := d.records[caller]
	if !ok {
		return domain.Call{}, domain.ErrUnknownConnection
	}
	trec, ok := d.records[target]
	if !ok || trec.InCall {
		return domain.Call{}, domain.ErrTargetUnavailable
	}
	if crec.InCall {
		return domain.Call{}, domain.ErrCallerBusy
	}
	call := domain.NewCall(caller, target)
	d.calls[call.ID] = call
	d.markLocked(crec, call.ID)
	d.markLocked(trec, call.ID)
	log.Info().Str("module", "app.directory").Str("call", string(call.ID)).
		Str("caller", string(caller)).Str("callee", string(target)).Msg("call pending")
	return *call, nil
}

// AcceptCall moves the pending call placed by caller to callee into the
// active state. Flags are already set.
func (d *Directory) AcceptCall(callee, caller domain.ConnectionID) (domain.Call, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	call := d.callOfLocked(callee)
	if call == nil || call.State != domain.CallPending || call.Callee != callee || call.Caller != caller {
		return domain.Call{}, domain.ErrNoSuchCall
	}
	call.State = domain.CallActive
	log.Info().Str("module", "app.directory").Str("call", string(call.ID)).Msg("call active")
	return *call, nil
}

// RejectCall ends the pending call placed by caller to callee.
func (d *Directory) RejectCall(callee, caller domain.ConnectionID) (domain.Call, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	call := d.callOfLocked(callee)
	if call == nil || call.State != domain.CallPending || call.Callee != callee || call.Caller != caller {
		return domain.Call{}, domain.ErrNoSuchCall
	}
	d.endLocked(call)
	return *call, nil
}

// EndCall ends the call joining sender and other, whatever its state.
func (d *Directory) EndCall(sender, other domain.ConnectionID) (domain.Call, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	call := d.callOfLocked(sender)
	if call == nil || !call.Between(sender, other) {
		return domain.Call{}, domain.ErrNoSuchCall
	}
	d.endLocked(call)
	return *call, nil
}

// ExpireCall ends the call only if it is still pending.
func (d *Directory) ExpireCall(id domain.CallID) (domain.Call, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	call, ok := d.calls[id]
	if !ok || call.State != domain.CallPending {
		return domain.Call{}, false
	}
	d.endLocked(call)
	return *call, true
}

// Remove deletes the record of conn and releases its counterpart if it was
// in a call. It returns false if conn was unknown.
func (d *Directory) Remove(conn domain.ConnectionID) (DisconnectResult, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.records[conn]
	if !ok {
		return DisconnectResult{}, false
	}
	delete(d.records, conn)
	res := DisconnectResult{Record: *rec}
	if rec.CallID == "" {
		return res, true
	}

	call, ok := d.calls[rec.CallID]
	if !ok {
		res.Inconsistent = true
		return res, true
	}
	delete(d.calls, call.ID)
	c := *call
	res.Call = &c

	other, _ := call.Counterpart(conn)
	orec, ok := d.records[other]
	if !ok || orec.CallID != call.ID {
		res.Inconsistent = true
		return res, true
	}
	d.clearLocked(orec)
	res.Counterpart = other
	return res, true
}

func (d *Directory) callOfLocked(conn domain.ConnectionID) *domain.Call {
	rec, ok := d.records[conn]
	if !ok || rec.CallID == "" {
		return nil
	}
	return d.calls[rec.CallID]
}

func (d *Directory) endLocked(call *domain.Call) {
	delete(d.calls, call.ID)
	for _, conn := range []domain.ConnectionID{call.Caller, call.Callee} {
		if rec, ok := d.records[conn]; ok && rec.CallID == call.ID {
			d.clearLocked(rec)
		}
	}
	log.Info().Str("module", "app.directory").Str("call", string(call.ID)).Msg("call finished")
}

func (d *Directory) markLocked(rec *domain.ParticipantRecord, id domain.CallID) {
	rec.CallID = id
	rec.InCall = true
}

func (d *Directory) clearLocked(rec *domain.ParticipantRecord) {
	rec.CallID = ""
	rec.InCall = false
}
