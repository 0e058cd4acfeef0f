package app

import (
	"fmt"
	"sync"
	"testing"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDirectoryWith(conns ...domain.ConnectionID) *Directory {
	d := NewDirectory()
	for _, c := range conns {
		d.Add(c)
	}
	return d
}

func inCall(t *testing.T, d *Directory, conn domain.ConnectionID) bool {
	t.Helper()
	rec, ok := d.Get(conn)
	require.True(t, ok, "record %s missing", conn)
	return rec.InCall
}

func TestDirectoryAddAndRegisterPeer(t *testing.T) {
	d := NewDirectory()
	rec := d.Add("a")
	assert.Equal(t, domain.ConnectionID("a"), rec.Connection)
	assert.Empty(t, rec.TransportPeerID)
	assert.False(t, rec.InCall)

	updated, ok := d.RegisterPeer("a", "peer-a")
	require.True(t, ok)
	assert.Equal(t, domain.TransportPeerID("peer-a"), updated.TransportPeerID)

	_, ok = d.RegisterPeer("ghost", "peer-x")
	assert.False(t, ok, "unknown connection must be ignored")
	assert.Equal(t, 1, d.Len())
}

func TestDirectoryStartCall(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(d *Directory)
		caller  domain.ConnectionID
		target  domain.ConnectionID
		wantErr error
	}{
		{name: "both idle", caller: "a", target: "b"},
		{name: "unknown target", caller: "a", target: "zz", wantErr: domain.ErrTargetUnavailable},
		{name: "unknown caller", caller: "zz", target: "a", wantErr: domain.ErrUnknownConnection},
		{name: "self call", caller: "a", target: "a", wantErr: domain.ErrSelfCall},
		{
			name:    "target busy",
			setup:   func(d *Directory) { _, _ = d.StartCall("b", "c") },
			caller:  "a",
			target:  "b",
			wantErr: domain.ErrTargetUnavailable,
		},
		{
			name:    "caller busy",
			setup:   func(d *Directory) { _, _ = d.StartCall("a", "c") },
			caller:  "a",
			target:  "b",
			wantErr: domain.ErrCallerBusy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDirectoryWith("a", "b", "c")
			if tt.setup != nil {
				tt.setup(d)
			}
			before := d.Snapshot()

			call, err := d.StartCall(tt.caller, tt.target)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, before, d.Snapshot(), "failed initiation must not mutate records")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.CallPending, call.State)
			assert.True(t, inCall(t, d, tt.caller))
			assert.True(t, inCall(t, d, tt.target))
			assert.False(t, inCall(t, d, "c"))
		})
	}
}

func TestDirectoryAcceptRejectEnd(t *testing.T) {
	t.Run("accept keeps flags and activates", func(t *testing.T) {
		d := newDirectoryWith("a", "b")
		_, err := d.StartCall("a", "b")
		require.NoError(t, err)

		call, err := d.AcceptCall("b", "a")
		require.NoError(t, err)
		assert.Equal(t, domain.CallActive, call.State)
		assert.True(t, inCall(t, d, "a"))
		assert.True(t, inCall(t, d, "b"))

		_, err = d.AcceptCall("b", "a")
		assert.ErrorIs(t, err, domain.ErrNoSuchCall, "second accept is stale")
	})

	t.Run("only the callee can accept", func(t *testing.T) {
		d := newDirectoryWith("a", "b")
		_, err := d.StartCall("a", "b")
		require.NoError(t, err)
		_, err = d.AcceptCall("a", "b")
		assert.ErrorIs(t, err, domain.ErrNoSuchCall)
	})

	t.Run("reject clears both", func(t *testing.T) {
		d := newDirectoryWith("a", "b")
		_, err := d.StartCall("a", "b")
		require.NoError(t, err)

		_, err = d.RejectCall("b", "a")
		require.NoError(t, err)
		assert.False(t, inCall(t, d, "a"))
		assert.False(t, inCall(t, d, "b"))
		assert.Zero(t, d.ActiveCalls())
	})

	t.Run("reject after accept is stale", func(t *testing.T) {
		d := newDirectoryWith("a", "b")
		_, _ = d.StartCall("a", "b")
		_, _ = d.AcceptCall("b", "a")
		_, err := d.RejectCall("b", "a")
		assert.ErrorIs(t, err, domain.ErrNoSuchCall)
		assert.True(t, inCall(t, d, "a"))
	})

	t.Run("either side can end", func(t *testing.T) {
		for _, sender := range []domain.ConnectionID{"a", "b"} {
			d := newDirectoryWith("a", "b")
			_, _ = d.StartCall("a", "b")
			_, _ = d.AcceptCall("b", "a")
			other := domain.ConnectionID("b")
			if sender == "b" {
				other = "a"
			}
			_, err := d.EndCall(sender, other)
			require.NoError(t, err)
			assert.False(t, inCall(t, d, "a"))
			assert.False(t, inCall(t, d, "b"))
		}
	})

	t.Run("end names the wrong counterpart", func(t *testing.T) {
		d := newDirectoryWith("a", "b", "c")
		_, _ = d.StartCall("a", "b")
		_, err := d.EndCall("a", "c")
		assert.ErrorIs(t, err, domain.ErrNoSuchCall)
		assert.True(t, inCall(t, d, "a"))
		assert.True(t, inCall(t, d, "b"))
	})

	t.Run("caller cancels while pending", func(t *testing.T) {
		d := newDirectoryWith("a", "b")
		_, _ = d.StartCall("a", "b")
		_, err := d.EndCall("a", "b")
		require.NoError(t, err)
		assert.False(t, inCall(t, d, "b"))
	})
}

func TestDirectoryExpireCall(t *testing.T) {
	d := newDirectoryWith("a", "b")
	call, err := d.StartCall("a", "b")
	require.NoError(t, err)

	_, ok := d.ExpireCall(call.ID)
	assert.True(t, ok)
	assert.False(t, inCall(t, d, "a"))

	call, err = d.StartCall("a", "b")
	require.NoError(t, err)
	_, err = d.AcceptCall("b", "a")
	require.NoError(t, err)
	_, ok = d.ExpireCall(call.ID)
	assert.False(t, ok, "active calls never expire")
	assert.True(t, inCall(t, d, "a"))
}

func TestDirectoryRemove(t *testing.T) {
	t.Run("idle participant", func(t *testing.T) {
		d := newDirectoryWith("a", "b")
		res, ok := d.Remove("a")
		require.True(t, ok)
		assert.Nil(t, res.Call)
		assert.Empty(t, res.Counterpart)
		assert.False(t, res.Inconsistent)
		assert.Equal(t, 1, d.Len())
	})

	t.Run("participant in call releases counterpart", func(t *testing.T) {
		d := newDirectoryWith("a", "b", "c")
		_, _ = d.StartCall("a", "b")
		_, _ = d.AcceptCall("b", "a")

		res, ok := d.Remove("b")
		require.True(t, ok)
		require.NotNil(t, res.Call)
		assert.Equal(t, domain.ConnectionID("a"), res.Counterpart)
		assert.False(t, res.Inconsistent)
		assert.False(t, inCall(t, d, "a"))
		assert.Zero(t, d.ActiveCalls())
	})

	t.Run("unknown connection", func(t *testing.T) {
		d := NewDirectory()
		_, ok := d.Remove("ghost")
		assert.False(t, ok)
	})

	t.Run("dangling call reference", func(t *testing.T) {
		d := newDirectoryWith("a", "b")
		_, _ = d.StartCall("a", "b")
		d.mu.Lock()
		d.records["b"].CallID = "other-call"
		d.mu.Unlock()

		res, ok := d.Remove("a")
		require.True(t, ok)
		assert.True(t, res.Inconsistent)
		assert.Empty(t, res.Counterpart)
		assert.True(t, inCall(t, d, "b"), "unrelated record must be left alone")
	})
}

// TestDirectoryConcurrentInitiate races many callers against one idle target:
// exactly one initiation may win.
func TestDirectoryConcurrentInitiate(t *testing.T) {
	const callers = 50
	d := newDirectoryWith("target")
	ids := make([]domain.ConnectionID, callers)
	for i := range ids {
		ids[i] = domain.ConnectionID(fmt.Sprintf("caller-%02d", i))
		d.Add(ids[i])
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []domain.ConnectionID
	)
	start := make(chan struct{})
	for _, id := range ids {
		wg.Add(1)
		go func(id domain.ConnectionID) {
			defer wg.Done()
			<-start
			if _, err := d.StartCall(id, "target"); err == nil {
				mu.Lock()
				winners = append(winners, id)
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, domain.ErrTargetUnavailable)
			}
		}(id)
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1)
	busy := 0
	for _, rec := range d.Snapshot() {
		if rec.InCall {
			busy++
		}
	}
	assert.Equal(t, 2, busy)
	assert.True(t, inCall(t, d, winners[0]))
}

// TestDirectoryKeepsPairsConsistent drives random-ish event sequences and checks
// that every in-call record has exactly one in-call counterpart.
func TestDirectoryKeepsPairsConsistent(t *testing.T) {
	d := newDirectoryWith("a", "b", "c", "d")
	steps := []func(){
		func() { _, _ = d.StartCall("a", "b") },
		func() { _, _ = d.StartCall("c", "b") },
		func() { _, _ = d.StartCall("c", "d") },
		func() { _, _ = d.AcceptCall("b", "a") },
		func() { _, _ = d.EndCall("d", "c") },
		func() { _, _ = d.StartCall("d", "a") },
		func() { _, _ = d.Remove("a") },
		func() { d.Add("e") },
		func() { _, _ = d.StartCall("e", "b") },
		func() { _, _ = d.RejectCall("b", "e") },
	}
	for i, step := range steps {
		step()
		byCall := map[domain.CallID]int{}
		for _, rec := range d.Snapshot() {
			assert.Equal(t, rec.CallID != "", rec.InCall, "step %d: flag mirrors call id", i)
			if rec.InCall {
				byCall[rec.CallID]++
			}
		}
		for id, n := range byCall {
			assert.Equal(t, 2, n, "step %d: call %s must pair exactly two records", i, id)
		}
	}
}
