package gate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/olsontechllc/netbox-pdns/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestGate_ExclusiveAccess(t *testing.T) {
	g := New(nil)

	var inFlight int32
	var maxInFlight int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := g.Acquire(context.Background(), "test", time.Second)
			require.NoError(t, err)
			defer h.Release()

			n := atomic.AddInt32(&inFlight, 1)
			if n > atomic.LoadInt32(&maxInFlight) {
				atomic.StoreInt32(&maxInFlight, n)
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), maxInFlight, "at most one holder should run at a time")
}

func TestGate_TimeoutWhenHeld(t *testing.T) {
	g := New(nil)

	h1, err := g.Acquire(context.Background(), "holder", time.Second)
	require.NoError(t, err)
	defer h1.Release()

	_, err = g.Acquire(context.Background(), "waiter", 20*time.Millisecond)
	require.ErrorIs(t, err, domain.ErrGateTimeout)
}

func TestGate_ReleaseIsIdempotent(t *testing.T) {
	g := New(nil)
	h, err := g.Acquire(context.Background(), "op", time.Second)
	require.NoError(t, err)

	h.Release()
	require.NotPanics(t, func() { h.Release() })

	// gate must be free again for a subsequent acquirer
	h2, err := g.Acquire(context.Background(), "op2", time.Second)
	require.NoError(t, err)
	h2.Release()
}
