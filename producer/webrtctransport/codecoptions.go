package webrtctransport

import (
	"strings"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/codecs"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v3"
)

// withCodecOptions rewrites the fmtp lines of the offered m-sections whose
// bound track carries codec options. The remote decoder is configured from
// them, the RTP sent by the track is left as is.
func withCodecOptions(desc webrtc.SessionDescription, byMid map[string]*binding) (webrtc.SessionDescription, error) {
	tuned := false

	for _, b := range byMid {
		if b.codecOptions != (codecs.Options{}) {
			tuned = true

			break
		}
	}

	if !tuned {
		return desc, nil
	}

	parsed := &sdp.SessionDescription{}

	if err := parsed.Unmarshal([]byte(desc.SDP)); err != nil {
		return desc, errors.Annotatef(err, "parse offer")
	}

	for _, md := range parsed.MediaDescriptions {
		mid, _ := md.Attribute("mid")

		b, ok := byMid[mid]
		if !ok || b.codecOptions == (codecs.Options{}) {
			continue
		}

		applyCodecOptions(md, b.codecHint, b.codecOptions)
	}

	raw, err := parsed.Marshal()
	if err != nil {
		return desc, errors.Annotatef(err, "marshal offer")
	}

	desc.SDP = string(raw)

	return desc, nil
}

func applyCodecOptions(md *sdp.MediaDescription, hint string, options codecs.Options) {
	mimeTypes := map[string]string{}
	fmtps := map[string]int{}

	for i, attr := range md.Attributes {
		payloadType, value := splitPayloadType(attr.Value)

		switch attr.Key {
		case "rtpmap":
			name := strings.SplitN(value, "/", 2)[0]
			mimeTypes[payloadType] = md.MediaName.Media + "/" + name
		case "fmtp":
			fmtps[payloadType] = i
		}
	}

	for _, payloadType := range md.MediaName.Formats {
		mimeType, ok := mimeTypes[payloadType]
		if !ok || !tunable(mimeType, hint) {
			continue
		}

		codec := webrtc.RTPCodecCapability{MimeType: mimeType}

		i, hasFmtp := fmtps[payloadType]
		if hasFmtp {
			_, codec.SDPFmtpLine = splitPayloadType(md.Attributes[i].Value)
		}

		codec = options.Apply(codec)

		attr := sdp.NewAttribute("fmtp", payloadType+" "+codec.SDPFmtpLine)

		switch {
		case hasFmtp:
			md.Attributes[i] = attr
		case codec.SDPFmtpLine != "":
			md.Attributes = append(md.Attributes, attr)
		}
	}
}

// tunable is true for the hinted codec, or for every media codec without a
// hint. Retransmission formats never are.
func tunable(mimeType, hint string) bool {
	if hint != "" {
		return strings.EqualFold(mimeType, hint)
	}

	return !strings.HasSuffix(strings.ToLower(mimeType), "/rtx")
}

func splitPayloadType(value string) (payloadType, rest string) {
	parts := strings.SplitN(value, " ", 2)
	if len(parts) < 2 {
		return parts[0], ""
	}

	return parts[0], parts[1]
}
