package codecs_test

import (
	"testing"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/codecs"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_FuzzySearch(t *testing.T) {
	t.Parallel()

	r := codecs.NewRegistryDefault()

	codec, match := r.FuzzySearch(webrtc.RTPCodecCapability{
		MimeType:    "audio/OPUS",
		SDPFmtpLine: "useinbandfec=1",
	})
	assert.Equal(t, codecs.MatchExact, match)
	assert.Equal(t, webrtc.PayloadType(codecs.PayloadTypeOpus), codec.PayloadType)

	codec, match = r.FuzzySearch(webrtc.RTPCodecCapability{
		MimeType:    webrtc.MimeTypeH264,
		SDPFmtpLine: "packetization-mode=0",
	})
	assert.Equal(t, codecs.MatchPartial, match)
	assert.Equal(t, webrtc.PayloadType(codecs.PayloadTypeH264), codec.PayloadType)

	_, match = r.FuzzySearch(webrtc.RTPCodecCapability{MimeType: "video/AV1"})
	assert.Equal(t, codecs.MatchNone, match)
}

func TestRegistry_PreferredCodec(t *testing.T) {
	t.Parallel()

	r := codecs.NewRegistryDefault()

	codec, err := r.PreferredCodec("", webrtc.RTPCodecTypeVideo)
	require.NoError(t, err)
	assert.Equal(t, webrtc.MimeTypeVP8, codec.MimeType)

	codec, err = r.PreferredCodec("video/h264", webrtc.RTPCodecTypeVideo)
	require.NoError(t, err)
	assert.Equal(t, webrtc.MimeTypeH264, codec.MimeType)

	_, err = r.PreferredCodec("audio/opus", webrtc.RTPCodecTypeVideo)
	assert.Equal(t, codecs.ErrUnsupportedMimeType, errors.Cause(err))

	_, err = r.PreferredCodec("audio/g722", webrtc.RTPCodecTypeAudio)
	assert.Equal(t, codecs.ErrUnsupportedMimeType, errors.Cause(err))
}

func TestRegistry_InterceptorParamsForCodec(t *testing.T) {
	t.Parallel()

	r := codecs.NewRegistryDefault()

	params, err := r.InterceptorParamsForCodec(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8})
	require.NoError(t, err)
	assert.Equal(t, webrtc.PayloadType(codecs.PayloadTypeVP8), params.PayloadType)
	assert.Len(t, params.RTCPFeedback, 4)

	_, err = r.InterceptorParamsForCodec(webrtc.RTPCodecCapability{MimeType: "video/AV1"})
	assert.Equal(t, codecs.ErrUnsupportedMimeType, errors.Cause(err))
}

func TestRegistry_RegisterWith(t *testing.T) {
	t.Parallel()

	var m webrtc.MediaEngine

	require.NoError(t, codecs.NewRegistryDefault().RegisterWith(&m))
}

func TestOptions_Apply(t *testing.T) {
	t.Parallel()

	opus := webrtc.RTPCodecCapability{
		MimeType:    webrtc.MimeTypeOpus,
		SDPFmtpLine: "minptime=10;useinbandfec=1",
	}

	got := codecs.Options{
		OpusStereo:          true,
		OpusDtx:             true,
		OpusFec:             false,
		OpusPtime:           20,
		OpusMaxPlaybackRate: 48000,
	}.Apply(opus)

	assert.Equal(t,
		"maxplaybackrate=48000;minptime=10;ptime=20;sprop-stereo=1;stereo=1;usedtx=1;useinbandfec=0",
		got.SDPFmtpLine,
	)

	vp8 := codecs.Options{VideoGoogleStartBitrate: 1000}.Apply(webrtc.RTPCodecCapability{
		MimeType: webrtc.MimeTypeVP8,
	})
	assert.Equal(t, "x-google-start-bitrate=1000", vp8.SDPFmtpLine)
}
