package media

import (
	"strings"
	"sync"

	"github.com/juju/errors"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

// Track is a local capture or a track derived from one. A Track has exactly
// one owner at a time and the owner is responsible for calling Stop.
type Track interface {
	ID() string
	Kind() webrtc.RTPCodecType
	Label() string
	Codec() webrtc.RTPCodecCapability

	// Settings reports what the track currently runs with.
	Settings() TrackSettings
	// ApplyConstraints reconfigures a live track in place.
	ApplyConstraints(constraints Constraints) error

	Enabled() bool
	// SetEnabled controls whether media flows to the network. A disabled
	// track stays live.
	SetEnabled(enabled bool)

	// Stop releases the underlying device. It is safe to call more than once.
	Stop()
	Ended() bool

	// Local returns the network-bindable half of the track.
	Local() webrtc.TrackLocal
}

// PacketSource is implemented by tracks that let other components observe
// their RTP packets. Derived tracks are fed this way.
type PacketSource interface {
	OnPacket(fn func(*rtp.Packet)) (unsubscribe func())
}

// KeyframeRequester is implemented by video tracks whose source can be asked
// for a new keyframe.
type KeyframeRequester interface {
	RequestKeyframe()
}

// KindFromMimeType returns the codec type for a mime type such as
// "audio/opus".
func KindFromMimeType(mimeType string) webrtc.RTPCodecType {
	if strings.HasPrefix(strings.ToLower(mimeType), "audio/") {
		return webrtc.RTPCodecTypeAudio
	}

	return webrtc.RTPCodecTypeVideo
}

// BaseTrack holds the state every Track implementation shares.
type BaseTrack struct {
	id    string
	label string
	codec webrtc.RTPCodecCapability

	mu       sync.RWMutex
	settings TrackSettings
	enabled  bool
	ended    bool
	onStop   []func()
}

func NewBaseTrack(id, label string, codec webrtc.RTPCodecCapability, settings TrackSettings) *BaseTrack {
	return &BaseTrack{
		id:       id,
		label:    label,
		codec:    codec,
		settings: settings,
		enabled:  true,
	}
}

func (t *BaseTrack) ID() string                       { return t.id }
func (t *BaseTrack) Label() string                    { return t.label }
func (t *BaseTrack) Codec() webrtc.RTPCodecCapability { return t.codec }

func (t *BaseTrack) Kind() webrtc.RTPCodecType {
	return KindFromMimeType(t.codec.MimeType)
}

func (t *BaseTrack) Settings() TrackSettings {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.settings
}

func (t *BaseTrack) SetSettings(settings TrackSettings) {
	t.mu.Lock()
	t.settings = settings
	t.mu.Unlock()
}

func (t *BaseTrack) Enabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.enabled
}

func (t *BaseTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}

func (t *BaseTrack) Ended() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.ended
}

// OnStop registers fn to run when the track stops. Hooks run in reverse
// registration order. When the track has already ended fn runs immediately.
func (t *BaseTrack) OnStop(fn func()) {
	t.mu.Lock()

	if t.ended {
		t.mu.Unlock()
		fn()

		return
	}

	t.onStop = append(t.onStop, fn)
	t.mu.Unlock()
}

func (t *BaseTrack) Stop() {
	t.mu.Lock()

	if t.ended {
		t.mu.Unlock()

		return
	}

	t.ended = true
	t.enabled = false
	hooks := t.onStop
	t.onStop = nil

	t.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
}

// StaticTrackParams configures a StaticTrack.
type StaticTrackParams struct {
	ID       string
	StreamID string
	Label    string
	Codec    webrtc.RTPCodecCapability
	Settings TrackSettings

	// Constrain is called by ApplyConstraints before the settings are
	// updated. Optional.
	Constrain func(Constraints) error
	// Keyframe asks the source for a keyframe. Optional.
	Keyframe func()
}

// StaticTrack is a Track fed by WriteRTP. Packets are forwarded to the
// network only while the track is enabled, observers registered with
// OnPacket always see them.
type StaticTrack struct {
	*BaseTrack

	local     *webrtc.TrackLocalStaticRTP
	constrain func(Constraints) error
	keyframe  func()

	subsMu  sync.RWMutex
	subs    map[uint64]func(*rtp.Packet)
	nextSub uint64
}

var (
	_ Track             = &StaticTrack{}
	_ PacketSource      = &StaticTrack{}
	_ KeyframeRequester = &StaticTrack{}
)

func NewStaticTrack(params StaticTrackParams) (*StaticTrack, error) {
	streamID := params.StreamID
	if streamID == "" {
		streamID = params.ID
	}

	local, err := webrtc.NewTrackLocalStaticRTP(params.Codec, params.ID, streamID)
	if err != nil {
		return nil, errors.Annotatef(err, "new local track %s", params.ID)
	}

	label := params.Label
	if label == "" {
		label = params.ID
	}

	return &StaticTrack{
		BaseTrack: NewBaseTrack(params.ID, label, params.Codec, params.Settings),
		local:     local,
		constrain: params.Constrain,
		keyframe:  params.Keyframe,
		subs:      map[uint64]func(*rtp.Packet){},
	}, nil
}

func (t *StaticTrack) Local() webrtc.TrackLocal {
	return t.local
}

func (t *StaticTrack) ApplyConstraints(constraints Constraints) error {
	if t.Ended() {
		return errors.Trace(ErrTrackEnded)
	}

	if t.constrain != nil {
		if err := t.constrain(constraints); err != nil {
			return errors.Annotatef(err, "apply constraints to %s", t.ID())
		}
	}

	t.SetSettings(t.Settings().Apply(constraints))

	return nil
}

func (t *StaticTrack) RequestKeyframe() {
	if t.keyframe != nil {
		t.keyframe()
	}
}

func (t *StaticTrack) OnPacket(fn func(*rtp.Packet)) (unsubscribe func()) {
	t.subsMu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	t.subsMu.Unlock()

	return func() {
		t.subsMu.Lock()
		delete(t.subs, id)
		t.subsMu.Unlock()
	}
}

// WriteRTP publishes a packet to observers and, when enabled, to every
// bound network sender.
func (t *StaticTrack) WriteRTP(packet *rtp.Packet) error {
	if t.Ended() {
		return errors.Trace(ErrTrackEnded)
	}

	t.subsMu.RLock()
	for _, fn := range t.subs {
		fn(packet)
	}
	t.subsMu.RUnlock()

	if !t.Enabled() {
		return nil
	}

	return errors.Trace(t.local.WriteRTP(packet))
}
