// Package gate provides the readiness barrier between local capture and
// network production.
package gate

import (
	"context"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/logger"
	"github.com/mediaroom/producer/producer/metrics"
)

// ErrTransportUnavailable is returned by Wait when the transport did not
// appear within the configured timeout. Callers treat it as deferral.
var ErrTransportUnavailable = errors.New("transport unavailable")

// Waiter is the part of Gate senders depend on.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Gate resolves once the transport objects exist. Whether the transport is
// actually connected is tracked separately by SetBound and IsBound.
type Gate struct {
	log     logger.Logger
	timeout time.Duration

	doneCh chan struct{}
	once   sync.Once
	err    error

	mu      sync.Mutex
	bound   bool
	onBound []func()
}

var _ Waiter = &Gate{}

// New returns an unresolved gate. A timeout of zero waits indefinitely.
func New(log logger.Logger, timeout time.Duration) *Gate {
	return &Gate{
		log:     log.WithNamespaceAppended("gate"),
		timeout: timeout,
		doneCh:  make(chan struct{}),
	}
}

func (g *Gate) done(err error) {
	g.once.Do(func() {
		g.err = err
		close(g.doneCh)
	})
}

// Resolve marks the transport objects as present. Only the first Resolve or
// Reject has an effect.
func (g *Gate) Resolve() {
	g.log.Info("Transport ready", nil)
	g.done(nil)
}

// Reject makes every current and future Wait fail with err.
func (g *Gate) Reject(err error) {
	g.log.Error("Transport failed", err, nil)
	g.done(err)
}

// Ready returns true once the gate resolved or rejected.
func (g *Gate) Ready() bool {
	select {
	case <-g.doneCh:
		return true
	default:
		return false
	}
}

// Wait blocks until the gate settles, ctx is done or the timeout elapses.
func (g *Gate) Wait(ctx context.Context) error {
	var timeoutCh <-chan time.Time

	if g.timeout > 0 {
		timer := time.NewTimer(g.timeout)
		defer timer.Stop()

		timeoutCh = timer.C
	}

	select {
	case <-g.doneCh:
		return errors.Trace(g.err)
	case <-timeoutCh:
		return errors.Annotatef(ErrTransportUnavailable, "waited %s", g.timeout)
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	}
}

// IsBound returns true when the transport is connected and can carry
// media.
func (g *Gate) IsBound() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.bound
}

// SetBound records the connection state. A transition to bound runs the
// OnBound callbacks synchronously in registration order.
func (g *Gate) SetBound(bound bool) {
	g.mu.Lock()

	changed := g.bound != bound
	g.bound = bound
	callbacks := append([]func(){}, g.onBound...)

	g.mu.Unlock()

	if !changed {
		return
	}

	if bound {
		metrics.TransportBound.Set(1)
	} else {
		metrics.TransportBound.Set(0)
	}

	g.log.Info("Transport binding changed", logger.Ctx{
		"bound": bound,
	})

	if !bound {
		return
	}

	for _, fn := range callbacks {
		fn()
	}
}

// OnBound registers fn to run every time the transport becomes bound.
func (g *Gate) OnBound(fn func()) {
	g.mu.Lock()
	g.onBound = append(g.onBound, fn)
	g.mu.Unlock()
}
