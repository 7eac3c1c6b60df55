package codecs

import (
	"strings"

	"github.com/juju/errors"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
)

var ErrUnsupportedMimeType = errors.Errorf("unsupported mime type")

// Registry lists the codecs a producer can send.
type Registry struct {
	Audio Props
	Video Props
}

type Props struct {
	CodecParameters  []webrtc.RTPCodecParameters
	HeaderExtensions []webrtc.RTPHeaderExtensionCapability
}

const (
	clockRateOpus   = 48000
	PayloadTypeOpus = 111
	channelsOpus    = 2

	clockRateVideo  = 90000
	PayloadTypeVP8  = 96
	PayloadTypeH264 = 102
)

func opus() webrtc.RTPCodecCapability {
	return webrtc.RTPCodecCapability{
		MimeType:    webrtc.MimeTypeOpus,
		ClockRate:   clockRateOpus,
		Channels:    channelsOpus,
		SDPFmtpLine: "minptime=10;useinbandfec=1",
	}
}

func rtx(apt string) webrtc.RTPCodecCapability {
	return webrtc.RTPCodecCapability{
		MimeType:    "video/rtx",
		ClockRate:   clockRateVideo,
		SDPFmtpLine: "apt=" + apt,
	}
}

// NewRegistryDefault returns opus for audio and VP8 with H264 as fallback for
// video.
func NewRegistryDefault() *Registry {
	videoRTCPFeedback := []webrtc.RTCPFeedback{
		{Type: "goog-remb"},
		{Type: "ccm", Parameter: "fir"},
		{Type: "nack"},
		{Type: "nack", Parameter: "pli"},
	}

	return &Registry{
		Audio: Props{
			CodecParameters: []webrtc.RTPCodecParameters{
				{
					RTPCodecCapability: opus(),
					PayloadType:        PayloadTypeOpus,
				},
			},
		},
		Video: Props{
			CodecParameters: []webrtc.RTPCodecParameters{
				{
					RTPCodecCapability: webrtc.RTPCodecCapability{
						MimeType:     webrtc.MimeTypeVP8,
						ClockRate:    clockRateVideo,
						RTCPFeedback: videoRTCPFeedback,
					},
					PayloadType: PayloadTypeVP8,
				},
				{
					RTPCodecCapability: rtx("96"),
					PayloadType:        97,
				},
				{
					RTPCodecCapability: webrtc.RTPCodecCapability{
						MimeType:     webrtc.MimeTypeH264,
						ClockRate:    clockRateVideo,
						SDPFmtpLine:  "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
						RTCPFeedback: videoRTCPFeedback,
					},
					PayloadType: PayloadTypeH264,
				},
				{
					RTPCodecCapability: rtx("102"),
					PayloadType:        121,
				},
			},
		},
	}
}

// RegisterWith adds every codec and header extension to m.
func (r *Registry) RegisterWith(m *webrtc.MediaEngine) error {
	register := func(props Props, typ webrtc.RTPCodecType) error {
		for _, codec := range props.CodecParameters {
			if err := m.RegisterCodec(codec, typ); err != nil {
				return errors.Annotatef(err, "register codec %s", codec.MimeType)
			}
		}

		for _, ext := range props.HeaderExtensions {
			if err := m.RegisterHeaderExtension(ext, typ); err != nil {
				return errors.Annotatef(err, "register header extension %s", ext.URI)
			}
		}

		return nil
	}

	if err := register(r.Audio, webrtc.RTPCodecTypeAudio); err != nil {
		return errors.Trace(err)
	}

	return errors.Trace(register(r.Video, webrtc.RTPCodecTypeVideo))
}

type MatchType int

const (
	MatchNone    MatchType = 0
	MatchPartial MatchType = 1
	MatchExact   MatchType = 2
)

// FuzzySearch looks needle up by mime type and fmtp first, then by mime type
// alone.
func (r *Registry) FuzzySearch(needle webrtc.RTPCodecCapability) (webrtc.RTPCodecParameters, MatchType) {
	haystack := r.codecsByMimeType(needle.MimeType)

	needleFmtp := parseFmtp(needle.SDPFmtpLine)

	for _, c := range haystack {
		if strings.EqualFold(c.MimeType, needle.MimeType) &&
			fmtpConsist(needleFmtp, parseFmtp(c.SDPFmtpLine)) {
			return c, MatchExact
		}
	}

	for _, c := range haystack {
		if strings.EqualFold(c.MimeType, needle.MimeType) {
			return c, MatchPartial
		}
	}

	return webrtc.RTPCodecParameters{}, MatchNone
}

// PreferredCodec resolves a codec hint such as "video/h264". An empty hint
// selects the first codec of the given type.
func (r *Registry) PreferredCodec(hint string, typ webrtc.RTPCodecType) (webrtc.RTPCodecParameters, error) {
	props := r.Video
	if typ == webrtc.RTPCodecTypeAudio {
		props = r.Audio
	}

	if hint == "" {
		if len(props.CodecParameters) == 0 {
			return webrtc.RTPCodecParameters{}, errors.Annotatef(ErrUnsupportedMimeType, "no %s codecs", typ)
		}

		return props.CodecParameters[0], nil
	}

	if TypeFromMimeType(hint) != typ {
		return webrtc.RTPCodecParameters{}, errors.Annotatef(ErrUnsupportedMimeType, "%s for %s track", hint, typ)
	}

	codec, match := r.FuzzySearch(webrtc.RTPCodecCapability{MimeType: hint})
	if match == MatchNone {
		return webrtc.RTPCodecParameters{}, errors.Annotatef(ErrUnsupportedMimeType, "%s", hint)
	}

	return codec, nil
}

func (r *Registry) codecsByMimeType(mimeType string) []webrtc.RTPCodecParameters {
	if TypeFromMimeType(mimeType) == webrtc.RTPCodecTypeAudio {
		return r.Audio.CodecParameters
	}

	return r.Video.CodecParameters
}

func (r *Registry) headerExtensionsByMimeType(mimeType string) []webrtc.RTPHeaderExtensionCapability {
	if TypeFromMimeType(mimeType) == webrtc.RTPCodecTypeAudio {
		return r.Audio.HeaderExtensions
	}

	return r.Video.HeaderExtensions
}

// InterceptorParams are the negotiated values an interceptor needs to know
// about a stream.
type InterceptorParams struct {
	PayloadType         webrtc.PayloadType
	RTCPFeedback        []interceptor.RTCPFeedback
	RTPHeaderExtensions []interceptor.RTPHeaderExtension
}

func (r *Registry) InterceptorParamsForCodec(codec webrtc.RTPCodecCapability) (InterceptorParams, error) {
	params, match := r.FuzzySearch(codec)
	if match == MatchNone {
		return InterceptorParams{}, errors.Annotatef(ErrUnsupportedMimeType, "codec: %v", codec.MimeType)
	}

	var rtcpFeedback []interceptor.RTCPFeedback

	for _, fb := range params.RTCPFeedback {
		rtcpFeedback = append(rtcpFeedback, interceptor.RTCPFeedback{
			Type:      fb.Type,
			Parameter: fb.Parameter,
		})
	}

	var headerExtensions []interceptor.RTPHeaderExtension

	for i, h := range r.headerExtensionsByMimeType(codec.MimeType) {
		headerExtensions = append(headerExtensions, interceptor.RTPHeaderExtension{
			ID:  i + 1,
			URI: h.URI,
		})
	}

	return InterceptorParams{
		PayloadType:         params.PayloadType,
		RTCPFeedback:        rtcpFeedback,
		RTPHeaderExtensions: headerExtensions,
	}, nil
}

func TypeFromMimeType(mimeType string) webrtc.RTPCodecType {
	if strings.HasPrefix(strings.ToLower(mimeType), "audio/") {
		return webrtc.RTPCodecTypeAudio
	}

	return webrtc.RTPCodecTypeVideo
}
