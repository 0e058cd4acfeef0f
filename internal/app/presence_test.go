package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/stretchr/testify/assert"
)

type recordingStore struct {
	mu     sync.Mutex
	last   []domain.LogicalUserID
	writes int
	err    error
}

func (s *recordingStore) Replace(_ context.Context, online []domain.LogicalUserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	s.last = append([]domain.LogicalUserID(nil), online...)
	return s.err
}

func (s *recordingStore) Online(context.Context) ([]domain.LogicalUserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, nil
}

func (s *recordingStore) Close() error { return nil }

func TestPresenceAddRemove(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{}
	p := NewPresence(store)

	online := p.Add(ctx, "c1", "bob")
	assert.Equal(t, []domain.LogicalUserID{"bob"}, online)

	online = p.Add(ctx, "c2", "alice")
	assert.Equal(t, []domain.LogicalUserID{"alice", "bob"}, online)

	online = p.Add(ctx, "c3", "")
	assert.Len(t, online, 2, "anonymous connections are not listed")

	online = p.Remove(ctx, "c1")
	assert.Equal(t, []domain.LogicalUserID{"alice"}, online)
	assert.Equal(t, []domain.LogicalUserID{"alice"}, store.last)
	assert.Equal(t, 4, store.writes)
}

func TestPresenceSameUserTwoConnections(t *testing.T) {
	ctx := context.Background()
	p := NewPresence(nil)
	p.Add(ctx, "c1", "bob")
	p.Add(ctx, "c2", "bob")

	assert.Equal(t, []domain.LogicalUserID{"bob"}, p.Remove(ctx, "c1"), "still online through c2")
	assert.Empty(t, p.Remove(ctx, "c2"))
	assert.Empty(t, p.Remove(ctx, "c2"), "removing twice is harmless")
}

func TestPresenceMirrorFailureIsIgnored(t *testing.T) {
	store := &recordingStore{err: errors.New("redis down")}
	p := NewPresence(store)
	online := p.Add(context.Background(), "c1", "bob")
	assert.Equal(t, []domain.LogicalUserID{"bob"}, online)

	u, ok := p.UserOf("c1")
	assert.True(t, ok)
	assert.Equal(t, domain.LogicalUserID("bob"), u)
}
