// Package gate provides the single global serialization lock that every
// replica-mutating call path must acquire. No other component is allowed
// to construct a second one: at-most-one-mutating-replica-call-in-flight
// is the central invariant of the sync engine (§5).
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/olsontechllc/netbox-pdns/internal/domain"
	"github.com/olsontechllc/netbox-pdns/internal/metrics"
)

const DefaultTimeout = 30 * time.Second

// contentionWarnThreshold is the wait duration above which acquisition is
// logged at WARNING instead of DEBUG.
const contentionWarnThreshold = 1 * time.Second

// Gate is an instrumented mutex: every acquisition records wait time, every
// release records hold time, and callers get a bounded-wait Acquire instead
// of a blocking Lock.
type Gate struct {
	mu     chan struct{} // buffered(1): cheap semaphore, unlike sync.Mutex supports timeout
	logger *slog.Logger
}

func New(logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{mu: make(chan struct{}, 1), logger: logger}
	g.mu <- struct{}{}
	return g
}

// Holder is returned by Acquire; callers MUST defer Holder.Release() on
// every exit path, including failures, so the gate is never leaked.
type Holder struct {
	g         *Gate
	operation string
	acquired  time.Time
	released  sync.Once
}

// Acquire blocks up to timeout waiting for the gate. On success it returns
// a Holder whose Release must be deferred. On timeout it returns
// domain.ErrGateTimeout and a nil Holder.
func (g *Gate) Acquire(ctx context.Context, operation string, timeout time.Duration) (*Holder, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	start := time.Now()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-g.mu:
		wait := time.Since(start)
		metrics.GateWaitDuration.Observe(wait.Seconds())
		if wait > contentionWarnThreshold {
			g.logger.Warn("gate acquired after contention", "operation", operation, "wait", wait)
		} else {
			g.logger.Debug("gate acquired", "operation", operation, "wait", wait)
		}
		return &Holder{g: g, operation: operation, acquired: time.Now()}, nil
	case <-ctx.Done():
		metrics.GateTimeoutsTotal.Inc()
		g.logger.Error("gate acquisition canceled", "operation", operation, "error", ctx.Err())
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrGateTimeout, operation, ctx.Err())
	case <-timer.C:
		metrics.GateTimeoutsTotal.Inc()
		g.logger.Error("gate acquisition timed out", "operation", operation, "timeout", timeout)
		return nil, fmt.Errorf("%w: %s", domain.ErrGateTimeout, operation)
	}
}

// Release returns the gate to the pool and logs the hold duration. Safe to
// call multiple times; only the first call has effect.
func (h *Holder) Release() {
	h.released.Do(func() {
		hold := time.Since(h.acquired)
		metrics.GateHoldDuration.Observe(hold.Seconds())
		h.g.logger.Debug("gate released", "operation", h.operation, "hold", hold)
		h.g.mu <- struct{}{}
	})
}
