package app

import (
	"testing"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/stretchr/testify/assert"
)

type nopSignal struct{}

func (nopSignal) TrySend(core.Frame) error { return nil }
func (nopSignal) Close()                   {}

func TestRegistryBindUnbind(t *testing.T) {
	r := NewRegistry()
	canceled := false
	r.Bind(core.NewSession("c1", "bob", nopSignal{}), func() { canceled = true })

	sess, ok := r.GetSession("c1")
	assert.True(t, ok)
	assert.Equal(t, domain.LogicalUserID("bob"), sess.User())
	assert.Equal(t, 1, r.Count())
	assert.Len(t, r.Sessions(), 1)

	assert.True(t, r.Cancel("c1"))
	assert.True(t, canceled)

	assert.True(t, r.Unbind("c1"))
	assert.False(t, r.Unbind("c1"))
	assert.False(t, r.Cancel("c1"))
	_, ok = r.GetSession("c1")
	assert.False(t, ok)
}
