package gate_test

import (
	"context"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/gate"
	"github.com/mediaroom/producer/producer/test"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestGate_Resolve(t *testing.T) {
	defer goleak.VerifyNone(t)

	g := gate.New(test.NewLogger(), 0)
	assert.False(t, g.Ready())

	errCh := make(chan error, 1)

	go func() {
		errCh <- g.Wait(context.Background())
	}()

	g.Resolve()
	g.Reject(errors.New("ignored"))

	assert.NoError(t, <-errCh)
	assert.True(t, g.Ready())
	assert.NoError(t, g.Wait(context.Background()))
	assert.False(t, g.IsBound())
}

func TestGate_Reject(t *testing.T) {
	defer goleak.VerifyNone(t)

	g := gate.New(test.NewLogger(), 0)

	errTest := errors.New("ice failed")
	g.Reject(errTest)

	assert.Equal(t, errTest, errors.Cause(g.Wait(context.Background())))
}

func TestGate_Timeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	g := gate.New(test.NewLogger(), 10*time.Millisecond)

	err := g.Wait(context.Background())
	assert.Equal(t, gate.ErrTransportUnavailable, errors.Cause(err))
}

func TestGate_Cancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	g := gate.New(test.NewLogger(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, context.Canceled, errors.Cause(g.Wait(ctx)))
}

func TestGate_OnBound(t *testing.T) {
	defer goleak.VerifyNone(t)

	g := gate.New(test.NewLogger(), 0)

	calls := 0
	g.OnBound(func() { calls++ })

	g.SetBound(true)
	g.SetBound(true)
	assert.True(t, g.IsBound())
	assert.Equal(t, 1, calls)

	g.SetBound(false)
	assert.False(t, g.IsBound())
	assert.Equal(t, 1, calls)

	g.SetBound(true)
	assert.Equal(t, 2, calls)
}
