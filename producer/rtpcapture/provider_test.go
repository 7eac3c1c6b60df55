package rtpcapture_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/media"
	"github.com/mediaroom/producer/producer/rtpcapture"
	"github.com/mediaroom/producer/producer/test"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newProvider(t *testing.T, display rtpcapture.Display) *rtpcapture.Provider {
	t.Helper()

	p, err := rtpcapture.NewProvider(rtpcapture.Params{
		Log: test.NewLogger(),
		Sources: []rtpcapture.Source{
			{
				DeviceID: "cam",
				Label:    "Encoder",
				Kind:     media.DeviceKindVideoInput,
				Listen:   "127.0.0.1:0",
				MimeType: webrtc.MimeTypeVP8,
				Width:    1280,
				Height:   720,
			},
			{
				DeviceID:   "mic",
				Kind:       media.DeviceKindAudioInput,
				Listen:     "127.0.0.1:0",
				SampleRate: 48000,
			},
		},
		Display: display,
	})
	require.NoError(t, err)

	return p
}

type received struct {
	mu      sync.Mutex
	packets []*rtp.Packet
}

func (r *received) add(p *rtp.Packet) {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *p
	clone.Payload = append([]byte(nil), p.Payload...)
	r.packets = append(r.packets, &clone)
}

func (r *received) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.packets)
}

func TestProvider_EnumerateDevices(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newProvider(t, rtpcapture.Display{})
	defer p.Close()

	devices, err := p.EnumerateDevices(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []media.DeviceInfo{
		{DeviceID: "cam", Kind: media.DeviceKindVideoInput, Label: "Encoder"},
		{DeviceID: "mic", Kind: media.DeviceKindAudioInput, Label: "mic"},
	}, devices)
}

func TestProvider_InvalidSource(t *testing.T) {
	_, err := rtpcapture.NewProvider(rtpcapture.Params{
		Log:     test.NewLogger(),
		Sources: []rtpcapture.Source{{DeviceID: "cam", Kind: media.DeviceKindVideoInput}},
	})
	assert.True(t, errors.IsNotValid(err))
}

func TestProvider_GetUserMedia(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newProvider(t, rtpcapture.Display{})
	defer p.Close()

	ctx := context.Background()

	tracks, err := p.GetUserMedia(ctx, media.UserMediaConstraints{
		Video: &media.Constraints{Width: 640, Height: 360, FrameRate: 15},
	})
	require.NoError(t, err)
	require.Len(t, tracks, 1)

	track := tracks[0]
	settings := track.Settings()

	assert.Equal(t, "cam", settings.DeviceID)
	assert.Equal(t, 1280, settings.Width)
	assert.Equal(t, 720, settings.Height)
	assert.Equal(t, 15, settings.FrameRate)
	assert.Equal(t, webrtc.RTPCodecTypeVideo, track.Kind())

	addr := p.Addr("cam")
	require.NotNil(t, addr)

	got := &received{}
	unsubscribe := track.(media.PacketSource).OnPacket(got.add)

	defer unsubscribe()

	conn, err := net.Dial("udp", addr.String())
	require.NoError(t, err)

	defer conn.Close()

	packet := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    96,
			SequenceNumber: 1,
			SSRC:           1234,
		},
		Payload: []byte{1, 2, 3},
	}

	b, err := packet.Marshal()
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, _ = conn.Write(b)

		return got.len() > 0
	}, time.Second, 10*time.Millisecond)

	// keyframe requests go back to the sender
	track.(media.KeyframeRequester).RequestKeyframe()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))

	buf := make([]byte, 1500)
	n, err := conn.Read(buf)
	require.NoError(t, err)

	pkts, err := rtcp.Unmarshal(buf[:n])
	require.NoError(t, err)
	require.Len(t, pkts, 1)

	pli, ok := pkts[0].(*rtcp.PictureLossIndication)
	require.True(t, ok)
	assert.Equal(t, uint32(1234), pli.MediaSSRC)

	track.Stop()

	assert.Nil(t, p.Addr("cam"))
}

func TestProvider_SharedSource(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newProvider(t, rtpcapture.Display{})
	defer p.Close()

	ctx := context.Background()
	request := media.UserMediaConstraints{Audio: &media.Constraints{DeviceID: "mic"}}

	first, err := p.GetUserMedia(ctx, request)
	require.NoError(t, err)

	addr := p.Addr("mic")
	require.NotNil(t, addr)

	second, err := p.GetUserMedia(ctx, request)
	require.NoError(t, err)

	assert.NotEqual(t, first[0].ID(), second[0].ID())
	assert.Equal(t, addr, p.Addr("mic"))

	first[0].Stop()
	assert.Equal(t, addr, p.Addr("mic"))

	second[0].Stop()
	assert.Nil(t, p.Addr("mic"))
}

func TestProvider_UnknownDevice(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newProvider(t, rtpcapture.Display{})
	defer p.Close()

	_, err := p.GetUserMedia(context.Background(), media.UserMediaConstraints{
		Audio: &media.Constraints{},
		Video: &media.Constraints{DeviceID: "nope"},
	})
	assert.Equal(t, media.ErrNoDeviceAvailable, errors.Cause(err))

	// the audio track opened before the failure was released
	assert.Nil(t, p.Addr("mic"))
}

func TestProvider_GetDisplayMedia(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()

	p := newProvider(t, rtpcapture.Display{})

	_, err := p.GetDisplayMedia(ctx, media.DisplayMediaConstraints{})
	assert.Equal(t, media.ErrNoDeviceAvailable, errors.Cause(err))
	assert.NoError(t, p.Close())

	p = newProvider(t, rtpcapture.Display{
		Video: &rtpcapture.Source{
			DeviceID: "display",
			Kind:     media.DeviceKindVideoInput,
			Listen:   "127.0.0.1:0",
			Width:    1920,
			Height:   1080,
		},
		Audio: &rtpcapture.Source{
			DeviceID: "display-audio",
			Kind:     media.DeviceKindAudioInput,
			Listen:   "127.0.0.1:0",
		},
	})
	defer p.Close()

	tracks, err := p.GetDisplayMedia(ctx, media.DisplayMediaConstraints{})
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, 1920, tracks[0].Settings().Width)

	tracks, err = p.GetDisplayMedia(ctx, media.DisplayMediaConstraints{Audio: &media.Constraints{}})
	require.NoError(t, err)
	require.Len(t, tracks, 2)

	audio, video := media.SplitTracks(tracks)
	assert.Len(t, audio, 1)
	assert.Len(t, video, 1)

	// display sources are not listed as devices
	devices, err := p.EnumerateDevices(ctx)
	require.NoError(t, err)
	assert.Len(t, devices, 2)
}

func TestProvider_Close(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newProvider(t, rtpcapture.Display{})

	tracks, err := p.GetUserMedia(context.Background(), media.UserMediaConstraints{
		Audio: &media.Constraints{},
		Video: &media.Constraints{},
	})
	require.NoError(t, err)
	require.Len(t, tracks, 2)

	require.NoError(t, p.Close())

	for _, track := range tracks {
		assert.True(t, track.Ended())
	}

	_, err = p.GetUserMedia(context.Background(), media.UserMediaConstraints{Audio: &media.Constraints{}})
	assert.Equal(t, media.ErrNoDeviceAvailable, errors.Cause(err))
}
