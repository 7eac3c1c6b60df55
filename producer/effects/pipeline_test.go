package effects_test

import (
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/effects"
	"github.com/mediaroom/producer/producer/media"
	"github.com/mediaroom/producer/producer/test"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInput(t *testing.T) *media.StaticTrack {
	t.Helper()

	track, err := media.NewStaticTrack(media.StaticTrackParams{
		ID:    "cam-a-1",
		Label: "Camera A",
		Codec: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		Settings: media.TrackSettings{
			DeviceID: "cam-a",
			Width:    640,
			Height:   360,
		},
	})
	require.NoError(t, err)

	return track
}

type countingProcessor struct {
	seen   []uint16
	closed bool
}

func (c *countingProcessor) Process(p *rtp.Packet) *rtp.Packet {
	c.seen = append(c.seen, p.SequenceNumber)

	if p.SequenceNumber%2 == 0 {
		return nil
	}

	return p
}

func (c *countingProcessor) Close() error {
	c.closed = true

	return nil
}

func TestPipeline_Apply(t *testing.T) {
	t.Parallel()

	proc := &countingProcessor{}
	pipeline := effects.NewPipeline(test.NewLogger(), func(media.Track) (effects.Processor, error) {
		return proc, nil
	})

	input := newInput(t)

	output, err := pipeline.Apply(context.Background(), input)
	require.NoError(t, err)

	assert.NotEqual(t, input.ID(), output.ID())
	assert.Equal(t, "", output.Settings().DeviceID)
	assert.Equal(t, 640, output.Settings().Width)
	assert.Equal(t, input, pipeline.LookupInput(output.ID()))
	assert.Equal(t, input, pipeline.Origin(output))
	assert.Equal(t, input, pipeline.Origin(input))
	assert.True(t, pipeline.IsOutput(output.ID()))
	assert.False(t, pipeline.IsOutput(input.ID()))

	again, err := pipeline.Apply(context.Background(), output)
	require.NoError(t, err)
	assert.Equal(t, output, again)
	assert.Equal(t, 1, pipeline.Len())

	derived, ok := output.(media.PacketSource)
	require.True(t, ok)

	var forwarded []uint16

	derived.OnPacket(func(p *rtp.Packet) {
		forwarded = append(forwarded, p.SequenceNumber)
	})

	for i := uint16(1); i <= 4; i++ {
		require.NoError(t, input.WriteRTP(&rtp.Packet{Header: rtp.Header{SequenceNumber: i}}))
	}

	assert.Equal(t, []uint16{1, 2, 3, 4}, proc.seen)
	assert.Equal(t, []uint16{1, 3}, forwarded)
}

func TestPipeline_ApplyConstraintsForwardsToInput(t *testing.T) {
	t.Parallel()

	pipeline := effects.NewPipeline(test.NewLogger(), effects.NewRelay)
	input := newInput(t)

	output, err := pipeline.Apply(context.Background(), input)
	require.NoError(t, err)

	require.NoError(t, output.ApplyConstraints(media.Constraints{Width: 1280, Height: 720}))

	assert.Equal(t, 1280, input.Settings().Width)
	assert.Equal(t, 1280, output.Settings().Width)
	assert.Equal(t, "cam-a", input.Settings().DeviceID)
}

func TestPipeline_StopOutputReleasesInput(t *testing.T) {
	t.Parallel()

	proc := &countingProcessor{}
	pipeline := effects.NewPipeline(test.NewLogger(), func(media.Track) (effects.Processor, error) {
		return proc, nil
	})

	input := newInput(t)

	output, err := pipeline.Apply(context.Background(), input)
	require.NoError(t, err)

	output.Stop()

	assert.True(t, input.Ended())
	assert.True(t, proc.closed)
	assert.Equal(t, 0, pipeline.Len())
	assert.Nil(t, pipeline.LookupInput(output.ID()))
}

func TestPipeline_StopByID(t *testing.T) {
	t.Parallel()

	pipeline := effects.NewPipeline(test.NewLogger(), effects.NewRelay)
	input := newInput(t)

	output, err := pipeline.Apply(context.Background(), input)
	require.NoError(t, err)

	pipeline.Stop("does-not-exist")
	assert.Equal(t, 1, pipeline.Len())

	pipeline.Stop(output.ID())
	pipeline.Stop(output.ID())

	assert.True(t, output.Ended())
	assert.True(t, input.Ended())
	assert.Equal(t, 0, pipeline.Len())
}

func TestPipeline_InitFailed(t *testing.T) {
	t.Parallel()

	pipeline := effects.NewPipeline(test.NewLogger(), func(media.Track) (effects.Processor, error) {
		return nil, errors.New("no gpu")
	})

	input := newInput(t)

	_, err := pipeline.Apply(context.Background(), input)
	assert.Equal(t, effects.ErrEffectInitFailed, errors.Cause(err))
	assert.Contains(t, err.Error(), "no gpu")
	assert.False(t, input.Ended())
	assert.Equal(t, 0, pipeline.Len())
}

func TestPipeline_Close(t *testing.T) {
	t.Parallel()

	pipeline := effects.NewPipeline(test.NewLogger(), effects.NewRelay)

	a := newInput(t)
	b := newInput(t)

	_, err := pipeline.Apply(context.Background(), a)
	require.NoError(t, err)
	_, err = pipeline.Apply(context.Background(), b)
	require.NoError(t, err)

	pipeline.Close()

	assert.Equal(t, 0, pipeline.Len())
	assert.True(t, a.Ended())
	assert.True(t, b.Ended())
}

func TestLookupProcessor(t *testing.T) {
	t.Parallel()

	factory, err := effects.LookupProcessor(effects.ProcessorRelay)
	require.NoError(t, err)
	assert.NotNil(t, factory)
	assert.Contains(t, effects.ProcessorNames(), effects.ProcessorRelay)

	_, err = effects.LookupProcessor("bokeh")
	assert.Equal(t, effects.ErrUnknownProcessor, errors.Cause(err))
}

func TestRelay_PassesThrough(t *testing.T) {
	t.Parallel()

	processor, err := effects.NewRelay(nil)
	require.NoError(t, err)

	packet := &rtp.Packet{
		Header:  rtp.Header{Version: 2, SequenceNumber: 7, Timestamp: 3000},
		Payload: []byte{0x10, 0x02, 0x03},
	}

	out := processor.Process(packet)
	require.NotNil(t, out)
	assert.NotSame(t, packet, out)
	assert.Equal(t, packet.Header, out.Header)
	assert.Equal(t, packet.Payload, out.Payload)
	assert.NoError(t, processor.Close())
}
