package sender

import (
	"context"

	"github.com/mediaroom/producer/producer/codecs"
	"github.com/mediaroom/producer/producer/encodings"
	"github.com/mediaroom/producer/producer/media"
)

// AppData is forwarded to the remote side with the produced track.
type AppData struct {
	Source media.Kind `json:"source"`
}

// StartOptions configure a Start call.
type StartOptions struct {
	Track media.Track
	// ZeroRTPOnPause disables the track while paused so no media leaves the
	// host.
	ZeroRTPOnPause bool
	CodecOptions   codecs.Options
	// Encodings lists simulcast layers, empty for a single layer.
	Encodings []encodings.Encoding
	AppData   AppData
	// CodecHint selects a codec by mime type, empty for the default.
	CodecHint string
}

// Binding is the network side of a started sender.
type Binding interface {
	ReplaceTrack(track media.Track) error
	SetPaused(paused bool) error
	Unbind() error
}

// Binder attaches tracks to the outbound transport.
type Binder interface {
	Bind(ctx context.Context, kind media.Kind, options StartOptions) (Binding, error)
}
