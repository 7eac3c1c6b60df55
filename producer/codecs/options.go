package codecs

import (
	"strconv"

	"github.com/pion/webrtc/v3"
)

// Options tune the encoder of a produced track. Zero values keep the codec
// defaults.
type Options struct {
	OpusStereo          bool `json:"opusStereo,omitempty"`
	OpusDtx             bool `json:"opusDtx,omitempty"`
	OpusFec             bool `json:"opusFec,omitempty"`
	OpusPtime           int  `json:"opusPtime,omitempty"`
	OpusMaxPlaybackRate int  `json:"opusMaxPlaybackRate,omitempty"`

	VideoGoogleStartBitrate int `json:"videoGoogleStartBitrate,omitempty"`
}

func boolParam(b bool) string {
	if b {
		return "1"
	}

	return "0"
}

// Apply returns codec with its fmtp line extended by the options that apply
// to its mime type.
func (o Options) Apply(codec webrtc.RTPCodecCapability) webrtc.RTPCodecCapability {
	f := parseFmtp(codec.SDPFmtpLine)

	if TypeFromMimeType(codec.MimeType) == webrtc.RTPCodecTypeAudio {
		f["stereo"] = boolParam(o.OpusStereo)
		f["sprop-stereo"] = boolParam(o.OpusStereo)
		f["usedtx"] = boolParam(o.OpusDtx)
		f["useinbandfec"] = boolParam(o.OpusFec)

		if o.OpusPtime > 0 {
			f["ptime"] = strconv.Itoa(o.OpusPtime)
		}

		if o.OpusMaxPlaybackRate > 0 {
			f["maxplaybackrate"] = strconv.Itoa(o.OpusMaxPlaybackRate)
		}
	} else if o.VideoGoogleStartBitrate > 0 {
		f["x-google-start-bitrate"] = strconv.Itoa(o.VideoGoogleStartBitrate)
	}

	codec.SDPFmtpLine = f.String()

	return codec
}
