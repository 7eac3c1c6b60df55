package media_test

import (
	"testing"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/media"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTrack(t *testing.T, id string) *media.StaticTrack {
	t.Helper()

	track, err := media.NewStaticTrack(media.StaticTrackParams{
		ID:    id,
		Codec: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		Settings: media.TrackSettings{
			DeviceID: "cam-a",
			Width:    640,
			Height:   480,
		},
	})
	require.NoError(t, err)

	return track
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for _, kind := range media.Kinds {
		parsed, err := media.ParseKind(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}

	_, err := media.ParseKind("hologram")
	assert.Equal(t, media.ErrUnknownKind, errors.Cause(err))
}

func TestKind_Modality(t *testing.T) {
	t.Parallel()

	assert.Equal(t, media.ModalityAudio, media.KindMic.Modality())
	assert.Equal(t, media.ModalityVideo, media.KindWebcam.Modality())
	assert.Equal(t, media.ModalityVideo, media.KindExtraVideo.Modality())
	assert.Equal(t, media.ModalityScreen, media.KindScreen.Modality())
	assert.Equal(t, media.ModalityScreen, media.KindScreenAudio.Modality())

	assert.Equal(t, media.DeviceKindAudioInput, media.KindScreenAudio.DeviceKind())
	assert.Equal(t, media.DeviceKindVideoInput, media.KindExtraVideo.DeviceKind())
}

func TestStaticTrack_Stop(t *testing.T) {
	t.Parallel()

	track := newTrack(t, "cam-1")

	var order []string

	track.OnStop(func() { order = append(order, "first") })
	track.OnStop(func() { order = append(order, "second") })

	track.Stop()
	track.Stop()

	assert.True(t, track.Ended())
	assert.False(t, track.Enabled())
	assert.Equal(t, []string{"second", "first"}, order)

	track.OnStop(func() { order = append(order, "late") })
	assert.Equal(t, []string{"second", "first", "late"}, order)

	err := track.ApplyConstraints(media.Constraints{Width: 1280})
	assert.Equal(t, media.ErrTrackEnded, errors.Cause(err))
	assert.Equal(t, media.ErrTrackEnded, errors.Cause(track.WriteRTP(&rtp.Packet{})))
}

func TestStaticTrack_ApplyConstraints(t *testing.T) {
	t.Parallel()

	var seen media.Constraints

	track, err := media.NewStaticTrack(media.StaticTrackParams{
		ID:        "cam-2",
		Codec:     webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		Settings:  media.TrackSettings{DeviceID: "cam-a", Width: 640, Height: 480},
		Constrain: func(c media.Constraints) error { seen = c; return nil },
	})
	require.NoError(t, err)

	require.NoError(t, track.ApplyConstraints(media.Constraints{
		DeviceID:    "ignored",
		Width:       1280,
		AspectRatio: 16.0 / 9,
		FrameRate:   30,
	}))

	assert.Equal(t, 1280, seen.Width)
	assert.Equal(t, media.TrackSettings{
		DeviceID:  "cam-a",
		Width:     1280,
		Height:    720,
		FrameRate: 30,
	}, track.Settings())
	assert.Equal(t, webrtc.RTPCodecTypeVideo, track.Kind())
	assert.Equal(t, "cam-2", track.Label())
}

func TestStaticTrack_OnPacket(t *testing.T) {
	t.Parallel()

	track := newTrack(t, "cam-3")

	var got []uint16

	unsubscribe := track.OnPacket(func(p *rtp.Packet) {
		got = append(got, p.SequenceNumber)
	})

	track.SetEnabled(false)
	require.NoError(t, track.WriteRTP(&rtp.Packet{Header: rtp.Header{SequenceNumber: 1}}))

	unsubscribe()
	require.NoError(t, track.WriteRTP(&rtp.Packet{Header: rtp.Header{SequenceNumber: 2}}))

	assert.Equal(t, []uint16{1}, got)
}

func TestSlot(t *testing.T) {
	t.Parallel()

	var slot media.Slot

	a := newTrack(t, "a")
	b := newTrack(t, "b")

	assert.Nil(t, slot.Take())
	assert.False(t, slot.Release())

	require.NoError(t, slot.Put(a))
	require.NoError(t, slot.Put(a))

	err := slot.Put(b)
	assert.Equal(t, media.ErrSlotOccupied, errors.Cause(err))
	assert.Equal(t, a, slot.Peek())

	taken := slot.Take()
	assert.Equal(t, a, taken)
	assert.Nil(t, slot.Peek())
	assert.False(t, a.Ended())

	require.NoError(t, slot.Put(b))
	assert.True(t, slot.Release())
	assert.True(t, b.Ended())
	assert.Nil(t, slot.Peek())
}

func TestSplitTracks(t *testing.T) {
	t.Parallel()

	video := newTrack(t, "v")

	audio, err := media.NewStaticTrack(media.StaticTrackParams{
		ID:    "a",
		Codec: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000},
	})
	require.NoError(t, err)

	a, v := media.SplitTracks([]media.Track{video, audio})
	assert.Equal(t, []media.Track{audio}, a)
	assert.Equal(t, []media.Track{video}, v)

	media.StopTracks([]media.Track{video, audio})
	assert.True(t, video.Ended())
	assert.True(t, audio.Ended())
}

func TestFilterDevices(t *testing.T) {
	t.Parallel()

	devices := []media.DeviceInfo{
		{DeviceID: "1", Kind: media.DeviceKindAudioInput},
		{DeviceID: "2", Kind: media.DeviceKindVideoInput},
	}

	assert.Equal(t, devices[1:], media.FilterDevices(devices, media.DeviceKindVideoInput))
	assert.Empty(t, media.FilterDevices(nil, media.DeviceKindAudioInput))
}
