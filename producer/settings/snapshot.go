package settings

import (
	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/media"
)

const DefaultAspectRatio = 1.777

// Snapshot is an immutable read of the desired capture settings. Changing
// it does not affect live tracks until constraints are re-applied or the
// kind is restarted.
type Snapshot struct {
	AutoGainControl     bool `json:"autoGainControl" yaml:"auto_gain_control"`
	EchoCancellation    bool `json:"echoCancellation" yaml:"echo_cancellation"`
	NoiseSuppression    bool `json:"noiseSuppression" yaml:"noise_suppression"`
	SampleRate          int  `json:"sampleRate" yaml:"sample_rate"`
	ChannelCount        int  `json:"channelCount" yaml:"channel_count"`
	SampleSize          int  `json:"sampleSize" yaml:"sample_size"`
	OpusStereo          bool `json:"opusStereo" yaml:"opus_stereo"`
	OpusDtx             bool `json:"opusDtx" yaml:"opus_dtx"`
	OpusFec             bool `json:"opusFec" yaml:"opus_fec"`
	OpusPtime           int  `json:"opusPtime" yaml:"opus_ptime"`
	OpusMaxPlaybackRate int  `json:"opusMaxPlaybackRate" yaml:"opus_max_playback_rate"`

	Resolution  Resolution `json:"resolution" yaml:"resolution"`
	FrameRate   int        `json:"frameRate" yaml:"frame_rate"`
	AspectRatio float64    `json:"aspectRatio" yaml:"aspect_ratio"`
	BlurEnabled bool       `json:"blurEnabled" yaml:"blur_enabled"`

	ScreenSharingResolution Resolution `json:"screenSharingResolution" yaml:"screen_sharing_resolution"`
	ScreenSharingFrameRate  int        `json:"screenSharingFrameRate" yaml:"screen_sharing_frame_rate"`

	SelectedAudioDevice string `json:"selectedAudioDevice" yaml:"selected_audio_device"`
	SelectedVideoDevice string `json:"selectedVideoDevice" yaml:"selected_video_device"`
}

// Default returns the settings used when nothing is configured.
func Default() Snapshot {
	return Snapshot{
		AutoGainControl:     true,
		EchoCancellation:    true,
		NoiseSuppression:    true,
		SampleRate:          48000,
		ChannelCount:        1,
		SampleSize:          16,
		OpusStereo:          false,
		OpusDtx:             true,
		OpusFec:             true,
		OpusPtime:           20,
		OpusMaxPlaybackRate: 48000,

		Resolution:  ResolutionMedium,
		FrameRate:   15,
		AspectRatio: DefaultAspectRatio,

		ScreenSharingResolution: ResolutionVeryHigh,
		ScreenSharingFrameRate:  5,
	}
}

func (s Snapshot) Validate() error {
	if err := s.Resolution.Validate(); err != nil {
		return errors.Annotate(err, "resolution")
	}

	if err := s.ScreenSharingResolution.Validate(); err != nil {
		return errors.Annotate(err, "screen sharing resolution")
	}

	if s.FrameRate < 0 || s.ScreenSharingFrameRate < 0 {
		return errors.NotValidf("negative frame rate")
	}

	if s.AspectRatio < 0 {
		return errors.NotValidf("aspect ratio %v", s.AspectRatio)
	}

	return nil
}

// AudioConstraints returns microphone capture constraints.
func (s Snapshot) AudioConstraints(deviceID string) media.Constraints {
	return media.Constraints{
		DeviceID:         deviceID,
		SampleRate:       s.SampleRate,
		ChannelCount:     s.ChannelCount,
		EchoCancellation: s.EchoCancellation,
		NoiseSuppression: s.NoiseSuppression,
		AutoGainControl:  s.AutoGainControl,
	}
}

// VideoConstraints returns camera capture constraints.
func (s Snapshot) VideoConstraints(deviceID string) media.Constraints {
	c := VideoConstraints(s.Resolution, s.AspectRatio)
	c.DeviceID = deviceID
	c.FrameRate = s.FrameRate

	return c
}

// ScreenConstraints returns display capture video constraints.
func (s Snapshot) ScreenConstraints() media.Constraints {
	c := VideoConstraints(s.ScreenSharingResolution, s.AspectRatio)
	c.FrameRate = s.ScreenSharingFrameRate

	return c
}

// SelectedDevice returns the selected device id for a capture kind.
func (s Snapshot) SelectedDevice(kind media.DeviceKind) string {
	if kind == media.DeviceKindAudioInput {
		return s.SelectedAudioDevice
	}

	return s.SelectedVideoDevice
}

// WithSelectedDevice returns a copy of s with the selection for kind set.
func (s Snapshot) WithSelectedDevice(kind media.DeviceKind, deviceID string) Snapshot {
	if kind == media.DeviceKindAudioInput {
		s.SelectedAudioDevice = deviceID
	} else {
		s.SelectedVideoDevice = deviceID
	}

	return s
}
