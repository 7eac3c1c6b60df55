package media

import "math"

// Constraints describe what a capture should deliver. Zero values leave the
// choice to the capture provider.
type Constraints struct {
	DeviceID string `json:"deviceId,omitempty"`

	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	FrameRate   int     `json:"frameRate,omitempty"`
	AspectRatio float64 `json:"aspectRatio,omitempty"`

	SampleRate       int  `json:"sampleRate,omitempty"`
	ChannelCount     int  `json:"channelCount,omitempty"`
	EchoCancellation bool `json:"echoCancellation,omitempty"`
	NoiseSuppression bool `json:"noiseSuppression,omitempty"`
	AutoGainControl  bool `json:"autoGainControl,omitempty"`
}

// UserMediaConstraints request camera and/or microphone capture. A nil
// member is not requested.
type UserMediaConstraints struct {
	Audio *Constraints
	Video *Constraints
}

// DisplayMediaConstraints request a display capture. Audio is optional and
// its absence in the result is not an error.
type DisplayMediaConstraints struct {
	Video Constraints
	Audio *Constraints
}

// TrackSettings are the values a live track actually runs with.
type TrackSettings struct {
	DeviceID string `json:"deviceId,omitempty"`
	GroupID  string `json:"groupId,omitempty"`

	Width     int `json:"width,omitempty"`
	Height    int `json:"height,omitempty"`
	FrameRate int `json:"frameRate,omitempty"`

	SampleRate       int  `json:"sampleRate,omitempty"`
	ChannelCount     int  `json:"channelCount,omitempty"`
	EchoCancellation bool `json:"echoCancellation,omitempty"`
	NoiseSuppression bool `json:"noiseSuppression,omitempty"`
	AutoGainControl  bool `json:"autoGainControl,omitempty"`
}

// Apply returns s updated with every constraint that a running track can
// honour without reacquiring the device. DeviceID is never changed.
func (s TrackSettings) Apply(c Constraints) TrackSettings {
	if c.Width > 0 {
		s.Width = c.Width
	}

	if c.Height > 0 {
		s.Height = c.Height
	}

	if c.Width > 0 && c.Height == 0 && c.AspectRatio > 0 {
		s.Height = int(math.Round(float64(c.Width) / c.AspectRatio))
	}

	if c.FrameRate > 0 {
		s.FrameRate = c.FrameRate
	}

	if c.SampleRate > 0 {
		s.SampleRate = c.SampleRate
	}

	if c.ChannelCount > 0 {
		s.ChannelCount = c.ChannelCount
	}

	s.EchoCancellation = c.EchoCancellation
	s.NoiseSuppression = c.NoiseSuppression
	s.AutoGainControl = c.AutoGainControl

	return s
}
