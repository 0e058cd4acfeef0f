package presence

import (
	"context"
	"sync"

	"github.com/dkeye/peercall/internal/domain"
)

// MemoryStore keeps the last published online set in process.
type MemoryStore struct {
	mu     sync.RWMutex
	online []domain.LogicalUserID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Replace(_ context.Context, online []domain.LogicalUserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online = append(m.online[:0:0], online...)
	return nil
}

func (m *MemoryStore) Online(context.Context) ([]domain.LogicalUserID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.LogicalUserID{}, m.online...), nil
}

func (m *MemoryStore) Close() error { return nil }
