package app

import (
	"context"
	"sort"
	"sync"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/rs/zerolog/log"
)

// Presence tracks which logical users are online. A user stays online while
// at least one of its connections is alive.
type Presence struct {
	mu     sync.RWMutex
	byConn map[domain.ConnectionID]domain.LogicalUserID
	counts map[domain.LogicalUserID]int

	// mirrorMu orders store writes so the last writer publishes the latest set.
	mirrorMu sync.Mutex
	store    core.PresenceStore
}

// NewPresence accepts a nil store.
func NewPresence(store core.PresenceStore) *Presence {
	return &Presence{
		byConn: make(map[domain.ConnectionID]domain.LogicalUserID),
		counts: make(map[domain.LogicalUserID]int),
		store:  store,
	}
}

// Add associates conn with user and returns the online set after the change.
// Anonymous connections are not tracked.
func (p *Presence) Add(ctx context.Context, conn domain.ConnectionID, user domain.LogicalUserID) []domain.LogicalUserID {
	if user != "" {
		p.mu.Lock()
		if _, ok := p.byConn[conn]; !ok {
			p.byConn[conn] = user
			p.counts[user]++
		}
		p.mu.Unlock()
		log.Debug().Str("module", "app.presence").Str("conn", string(conn)).Str("user", string(user)).Msg("online")
	}
	return p.publish(ctx)
}

// Remove drops the association of conn and returns the online set after the change.
func (p *Presence) Remove(ctx context.Context, conn domain.ConnectionID) []domain.LogicalUserID {
	p.mu.Lock()
	user, ok := p.byConn[conn]
	if ok {
		delete(p.byConn, conn)
		p.counts[user]--
		if p.counts[user] <= 0 {
			delete(p.counts, user)
		}
	}
	p.mu.Unlock()
	if ok {
		log.Debug().Str("module", "app.presence").Str("conn", string(conn)).Str("user", string(user)).Msg("offline")
	}
	return p.publish(ctx)
}

func (p *Presence) UserOf(conn domain.ConnectionID) (domain.LogicalUserID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.byConn[conn]
	return u, ok
}

// Online returns the sorted set of online logical users.
func (p *Presence) Online() []domain.LogicalUserID {
	p.mu.RLock()
	out := make([]domain.LogicalUserID, 0, len(p.counts))
	for u := range p.counts {
		out = append(out, u)
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (p *Presence) publish(ctx context.Context) []domain.LogicalUserID {
	if p.store == nil {
		return p.Online()
	}
	p.mirrorMu.Lock()
	defer p.mirrorMu.Unlock()
	online := p.Online()
	if err := p.store.Replace(ctx, online); err != nil {
		log.Warn().Err(err).Str("module", "app.presence").Msg("presence mirror write failed")
	}
	return online
}
