// Package rtpcapture offers RTP streams arriving on UDP ports as capture
// devices. Hardware encoders, gstreamer or ffmpeg pipelines push RTP to the
// configured ports and the producer treats every port as a camera, a
// microphone or the display.
package rtpcapture

import (
	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/media"
)

// Source is one RTP stream offered as a device.
type Source struct {
	DeviceID string           `yaml:"device_id"`
	GroupID  string           `yaml:"group_id"`
	Label    string           `yaml:"label"`
	Kind     media.DeviceKind `yaml:"kind"`
	// Listen is the UDP address the stream arrives on, e.g. 127.0.0.1:5004.
	Listen string `yaml:"listen"`
	// MimeType of the payload, empty for the first registered codec of the
	// kind.
	MimeType string `yaml:"mime_type"`

	Width        int `yaml:"width"`
	Height       int `yaml:"height"`
	FrameRate    int `yaml:"frame_rate"`
	SampleRate   int `yaml:"sample_rate"`
	ChannelCount int `yaml:"channel_count"`
}

// Display are the streams returned by a display capture. Audio is
// optional.
type Display struct {
	Video *Source `yaml:"video"`
	Audio *Source `yaml:"audio"`
}

func (s Source) Validate() error {
	if s.DeviceID == "" {
		return errors.NotValidf("source without device_id")
	}

	if s.Listen == "" {
		return errors.NotValidf("source %s without listen address", s.DeviceID)
	}

	switch s.Kind {
	case media.DeviceKindAudioInput, media.DeviceKindVideoInput:
	default:
		return errors.NotValidf("source %s kind %q", s.DeviceID, s.Kind)
	}

	return nil
}

// DeviceInfo describes s the way the device directory lists it.
func (s Source) DeviceInfo() media.DeviceInfo {
	label := s.Label
	if label == "" {
		label = s.DeviceID
	}

	return media.DeviceInfo{
		DeviceID: s.DeviceID,
		GroupID:  s.GroupID,
		Kind:     s.Kind,
		Label:    label,
	}
}

func (s Source) settings() media.TrackSettings {
	return media.TrackSettings{
		DeviceID:     s.DeviceID,
		GroupID:      s.GroupID,
		Width:        s.Width,
		Height:       s.Height,
		FrameRate:    s.FrameRate,
		SampleRate:   s.SampleRate,
		ChannelCount: s.ChannelCount,
	}
}
