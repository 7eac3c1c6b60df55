package test

import (
	"context"
	"fmt"
	"sync"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/media"
	"github.com/pion/webrtc/v3"
)

// CaptureProvider is an in-memory media.CaptureProvider that records every
// call and the tracks it hands out.
type CaptureProvider struct {
	mu sync.Mutex

	devices []media.DeviceInfo

	userMediaErr error
	displayAudio bool

	enumerateCalls    int
	userMediaCalls    int
	displayMediaCalls int
	enumerateHook     func()

	tracks  []*media.StaticTrack
	counter int
}

var _ media.CaptureProvider = &CaptureProvider{}

func NewCaptureProvider(devices ...media.DeviceInfo) *CaptureProvider {
	return &CaptureProvider{
		devices: devices,
	}
}

// DefaultDevices returns two microphones and two cameras.
func DefaultDevices() []media.DeviceInfo {
	return []media.DeviceInfo{
		{DeviceID: "mic-a", Kind: media.DeviceKindAudioInput, Label: "Mic A"},
		{DeviceID: "mic-b", Kind: media.DeviceKindAudioInput, Label: "Mic B"},
		{DeviceID: "cam-a", Kind: media.DeviceKindVideoInput, Label: "Camera A"},
		{DeviceID: "cam-b", Kind: media.DeviceKindVideoInput, Label: "Camera B"},
	}
}

// FailUserMedia makes subsequent GetUserMedia calls fail with err.
func (p *CaptureProvider) FailUserMedia(err error) {
	p.mu.Lock()
	p.userMediaErr = err
	p.mu.Unlock()
}

// SetDisplayAudio controls whether display captures include an audio track.
func (p *CaptureProvider) SetDisplayAudio(enabled bool) {
	p.mu.Lock()
	p.displayAudio = enabled
	p.mu.Unlock()
}

// OnEnumerate sets a hook that runs inside every EnumerateDevices call.
func (p *CaptureProvider) OnEnumerate(fn func()) {
	p.mu.Lock()
	p.enumerateHook = fn
	p.mu.Unlock()
}

func (p *CaptureProvider) EnumerateCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.enumerateCalls
}

func (p *CaptureProvider) UserMediaCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.userMediaCalls
}

func (p *CaptureProvider) DisplayMediaCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.displayMediaCalls
}

// Tracks returns every track handed out so far.
func (p *CaptureProvider) Tracks() []*media.StaticTrack {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]*media.StaticTrack(nil), p.tracks...)
}

// LiveTracks returns the handed out tracks that were not stopped.
func (p *CaptureProvider) LiveTracks() []*media.StaticTrack {
	var ret []*media.StaticTrack

	for _, track := range p.Tracks() {
		if !track.Ended() {
			ret = append(ret, track)
		}
	}

	return ret
}

func (p *CaptureProvider) EnumerateDevices(ctx context.Context) ([]media.DeviceInfo, error) {
	p.mu.Lock()
	p.enumerateCalls++
	hook := p.enumerateHook
	devices := append([]media.DeviceInfo(nil), p.devices...)
	p.mu.Unlock()

	if hook != nil {
		hook()
	}

	return devices, nil
}

func (p *CaptureProvider) GetUserMedia(
	ctx context.Context,
	constraints media.UserMediaConstraints,
) ([]media.Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.userMediaCalls++

	if p.userMediaErr != nil {
		return nil, errors.Trace(p.userMediaErr)
	}

	var tracks []media.Track

	if constraints.Audio != nil {
		track, err := p.newTrack(media.DeviceKindAudioInput, *constraints.Audio, webrtc.MimeTypeOpus)
		if err != nil {
			return nil, errors.Trace(err)
		}

		tracks = append(tracks, track)
	}

	if constraints.Video != nil {
		track, err := p.newTrack(media.DeviceKindVideoInput, *constraints.Video, webrtc.MimeTypeVP8)
		if err != nil {
			media.StopTracks(tracks)

			return nil, errors.Trace(err)
		}

		tracks = append(tracks, track)
	}

	return tracks, nil
}

func (p *CaptureProvider) GetDisplayMedia(
	ctx context.Context,
	constraints media.DisplayMediaConstraints,
) ([]media.Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.displayMediaCalls++

	video := constraints.Video
	video.DeviceID = "display"

	if video.Width == 0 {
		video.Width, video.Height = 1920, 1080
	}

	track, err := p.newStaticTrack("display", video, webrtc.MimeTypeVP8)
	if err != nil {
		return nil, errors.Trace(err)
	}

	tracks := []media.Track{track}

	if p.displayAudio && constraints.Audio != nil {
		audio := *constraints.Audio
		audio.DeviceID = "display-audio"

		track, err := p.newStaticTrack("display-audio", audio, webrtc.MimeTypeOpus)
		if err != nil {
			return nil, errors.Trace(err)
		}

		tracks = append(tracks, track)
	}

	return tracks, nil
}

func (p *CaptureProvider) newTrack(
	kind media.DeviceKind,
	constraints media.Constraints,
	mimeType string,
) (*media.StaticTrack, error) {
	devices := media.FilterDevices(p.devices, kind)
	if len(devices) == 0 {
		return nil, errors.Trace(media.ErrNoDeviceAvailable)
	}

	device := devices[0]

	if constraints.DeviceID != "" {
		found := false

		for _, d := range devices {
			if d.DeviceID == constraints.DeviceID {
				device, found = d, true
			}
		}

		if !found {
			return nil, errors.Annotatef(media.ErrNoDeviceAvailable, "device %s", constraints.DeviceID)
		}
	}

	constraints.DeviceID = device.DeviceID

	if kind == media.DeviceKindVideoInput && constraints.Width == 0 {
		constraints.Width, constraints.Height = 640, 480
	}

	return p.newStaticTrack(device.Label, constraints, mimeType)
}

func (p *CaptureProvider) newStaticTrack(
	label string,
	constraints media.Constraints,
	mimeType string,
) (*media.StaticTrack, error) {
	p.counter++

	settings := media.TrackSettings{DeviceID: constraints.DeviceID}.Apply(constraints)

	track, err := media.NewStaticTrack(media.StaticTrackParams{
		ID:       fmt.Sprintf("%s-%d", constraints.DeviceID, p.counter),
		Label:    label,
		Codec:    webrtc.RTPCodecCapability{MimeType: mimeType, ClockRate: clockRate(mimeType)},
		Settings: settings,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	p.tracks = append(p.tracks, track)

	return track, nil
}

func clockRate(mimeType string) uint32 {
	if mimeType == webrtc.MimeTypeOpus {
		return 48000
	}

	return 90000
}
