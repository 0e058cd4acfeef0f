package client

import (
	"sort"
	"sync"

	"github.com/dkeye/peercall/internal/domain"
)

// Roster is the client's copy of the participant directory and of the online
// user set, kept current from coordinator broadcasts.
type Roster struct {
	mu      sync.RWMutex
	records map[domain.ConnectionID]domain.ParticipantRecord
	online  []domain.LogicalUserID
}

func NewRoster() *Roster {
	return &Roster{records: make(map[domain.ConnectionID]domain.ParticipantRecord)}
}

// Replace swaps in a full users-list.
func (r *Roster) Replace(list []domain.ParticipantRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[domain.ConnectionID]domain.ParticipantRecord, len(list))
	for _, rec := range list {
		r.records[rec.Connection] = rec
	}
}

func (r *Roster) Upsert(rec domain.ParticipantRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.Connection] = rec
}

func (r *Roster) Remove(conn domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, conn)
}

func (r *Roster) Get(conn domain.ConnectionID) (domain.ParticipantRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[conn]
	return rec, ok
}

func (r *Roster) Snapshot() []domain.ParticipantRecord {
	r.mu.RLock()
	out := make([]domain.ParticipantRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Connection < out[j].Connection })
	return out
}

// Callable lists idle participants other than self.
func (r *Roster) Callable(self domain.ConnectionID) []domain.ParticipantRecord {
	all := r.Snapshot()
	out := all[:0]
	for _, rec := range all {
		if rec.Connection != self && !rec.InCall {
			out = append(out, rec)
		}
	}
	return out
}

func (r *Roster) SetOnline(users []domain.LogicalUserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online = append([]domain.LogicalUserID(nil), users...)
}

func (r *Roster) Online() []domain.LogicalUserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.LogicalUserID(nil), r.online...)
}
