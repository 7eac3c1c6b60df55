package media

import (
	"github.com/juju/errors"
)

// Kind identifies one of the fixed producing flows of a session. Every Kind
// maps to exactly one sender.
type Kind string

const (
	KindMic         Kind = "mic"
	KindWebcam      Kind = "webcam"
	KindScreen      Kind = "screen"
	KindScreenAudio Kind = "screenaudio"
	KindExtraVideo  Kind = "extravideo"
)

// Kinds lists every Kind in a stable order.
var Kinds = []Kind{
	KindMic,
	KindWebcam,
	KindScreen,
	KindScreenAudio,
	KindExtraVideo,
}

var ErrUnknownKind = errors.New("unknown media kind")

// ParseKind validates str against the closed set of kinds.
func ParseKind(str string) (Kind, error) {
	for _, kind := range Kinds {
		if string(kind) == str {
			return kind, nil
		}
	}

	return "", errors.Annotatef(ErrUnknownKind, "%q", str)
}

func (k Kind) String() string {
	return string(k)
}

// IsAudio returns true for the kinds that carry audio.
func (k Kind) IsAudio() bool {
	return k == KindMic || k == KindScreenAudio
}

// Modality groups kinds that share an in-progress indicator.
type Modality string

const (
	ModalityAudio  Modality = "audio"
	ModalityVideo  Modality = "video"
	ModalityScreen Modality = "screen"
)

// Modalities lists every Modality in a stable order.
var Modalities = []Modality{ModalityAudio, ModalityVideo, ModalityScreen}

// Modality returns the modality k belongs to.
func (k Kind) Modality() Modality {
	switch k {
	case KindMic:
		return ModalityAudio
	case KindScreen, KindScreenAudio:
		return ModalityScreen
	case KindWebcam, KindExtraVideo:
		return ModalityVideo
	default:
		return ModalityVideo
	}
}

// DeviceKind is the kind of a capture device.
type DeviceKind string

const (
	DeviceKindAudioInput DeviceKind = "audioinput"
	DeviceKindVideoInput DeviceKind = "videoinput"
)

// DeviceKind returns the capture device kind used by k.
func (k Kind) DeviceKind() DeviceKind {
	if k.IsAudio() {
		return DeviceKindAudioInput
	}

	return DeviceKindVideoInput
}
