package devices_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/devices"
	"github.com/mediaroom/producer/producer/media"
	"github.com/mediaroom/producer/producer/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestDirectory_RefreshSingleFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	provider := test.NewCaptureProvider(test.DefaultDevices()...)

	started := make(chan struct{})
	release := make(chan struct{})

	var once sync.Once

	provider.OnEnumerate(func() {
		once.Do(func() { close(started) })
		<-release
	})

	dir := devices.NewDirectory(test.NewLogger(), provider)

	var wg sync.WaitGroup

	const callers = 10

	errs := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			errs <- dir.Refresh(context.Background(), devices.PhaseInitial)
		}()
	}

	<-started
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	assert.Equal(t, 1, provider.EnumerateCalls())
	assert.Len(t, dir.Devices(), 4)

	require.NoError(t, dir.Refresh(context.Background(), devices.PhaseInitial))
	assert.Equal(t, 1, provider.EnumerateCalls())

	require.NoError(t, dir.Refresh(context.Background(), devices.PhasePost))
	assert.Equal(t, 2, provider.EnumerateCalls())
}

func TestDirectory_InvalidateAndReset(t *testing.T) {
	defer goleak.VerifyNone(t)

	provider := test.NewCaptureProvider(test.DefaultDevices()...)
	dir := devices.NewDirectory(test.NewLogger(), provider)
	ctx := context.Background()

	require.NoError(t, dir.Refresh(ctx, devices.PhaseInitial))
	dir.Invalidate(devices.PhaseInitial)
	require.NoError(t, dir.Refresh(ctx, devices.PhaseInitial))
	assert.Equal(t, 2, provider.EnumerateCalls())

	dir.Reset()
	assert.Empty(t, dir.Devices())

	require.NoError(t, dir.Refresh(ctx, devices.PhaseInitial))
	require.NoError(t, dir.Refresh(ctx, devices.PhasePost))
	assert.Equal(t, 4, provider.EnumerateCalls())
}

func TestDirectory_RefreshCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	provider := test.NewCaptureProvider(test.DefaultDevices()...)

	release := make(chan struct{})
	provider.OnEnumerate(func() { <-release })

	dir := devices.NewDirectory(test.NewLogger(), provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := dir.Refresh(ctx, devices.PhaseInitial)
	assert.Equal(t, context.Canceled, errors.Cause(err))

	close(release)

	require.NoError(t, dir.Refresh(context.Background(), devices.PhaseInitial))
	assert.Equal(t, 1, provider.EnumerateCalls())
}

func TestDirectory_ResolveDeviceID(t *testing.T) {
	defer goleak.VerifyNone(t)

	provider := test.NewCaptureProvider(test.DefaultDevices()...)
	dir := devices.NewDirectory(test.NewLogger(), provider)

	_, err := dir.ResolveDeviceID("", media.DeviceKindAudioInput)
	assert.Equal(t, media.ErrNoDeviceAvailable, errors.Cause(err))

	require.NoError(t, dir.Refresh(context.Background(), devices.PhaseInitial))

	id, err := dir.ResolveDeviceID("mic-b", media.DeviceKindAudioInput)
	require.NoError(t, err)
	assert.Equal(t, "mic-b", id)

	id, err = dir.ResolveDeviceID("unplugged", media.DeviceKindVideoInput)
	require.NoError(t, err)
	assert.Equal(t, "cam-a", id)

	id, err = dir.ResolveDeviceID("mic-b", media.DeviceKindVideoInput)
	require.NoError(t, err)
	assert.Equal(t, "cam-a", id)
}
