package settings

// Patch is a partial update. Nil members are left unchanged.
type Patch struct {
	AutoGainControl     *bool `json:"autoGainControl,omitempty"`
	EchoCancellation    *bool `json:"echoCancellation,omitempty"`
	NoiseSuppression    *bool `json:"noiseSuppression,omitempty"`
	SampleRate          *int  `json:"sampleRate,omitempty"`
	ChannelCount        *int  `json:"channelCount,omitempty"`
	SampleSize          *int  `json:"sampleSize,omitempty"`
	OpusStereo          *bool `json:"opusStereo,omitempty"`
	OpusDtx             *bool `json:"opusDtx,omitempty"`
	OpusFec             *bool `json:"opusFec,omitempty"`
	OpusPtime           *int  `json:"opusPtime,omitempty"`
	OpusMaxPlaybackRate *int  `json:"opusMaxPlaybackRate,omitempty"`

	Resolution  *Resolution `json:"resolution,omitempty"`
	FrameRate   *int        `json:"frameRate,omitempty"`
	AspectRatio *float64    `json:"aspectRatio,omitempty"`
	BlurEnabled *bool       `json:"blurEnabled,omitempty"`

	ScreenSharingResolution *Resolution `json:"screenSharingResolution,omitempty"`
	ScreenSharingFrameRate  *int        `json:"screenSharingFrameRate,omitempty"`
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

// Apply returns a copy of s with every non-nil member of p written over it.
func (p Patch) Apply(s Snapshot) Snapshot {
	setBool(&s.AutoGainControl, p.AutoGainControl)
	setBool(&s.EchoCancellation, p.EchoCancellation)
	setBool(&s.NoiseSuppression, p.NoiseSuppression)
	setInt(&s.SampleRate, p.SampleRate)
	setInt(&s.ChannelCount, p.ChannelCount)
	setInt(&s.SampleSize, p.SampleSize)
	setBool(&s.OpusStereo, p.OpusStereo)
	setBool(&s.OpusDtx, p.OpusDtx)
	setBool(&s.OpusFec, p.OpusFec)
	setInt(&s.OpusPtime, p.OpusPtime)
	setInt(&s.OpusMaxPlaybackRate, p.OpusMaxPlaybackRate)

	if p.Resolution != nil {
		s.Resolution = *p.Resolution
	}

	setInt(&s.FrameRate, p.FrameRate)

	if p.AspectRatio != nil {
		s.AspectRatio = *p.AspectRatio
	}

	setBool(&s.BlurEnabled, p.BlurEnabled)

	if p.ScreenSharingResolution != nil {
		s.ScreenSharingResolution = *p.ScreenSharingResolution
	}

	setInt(&s.ScreenSharingFrameRate, p.ScreenSharingFrameRate)

	return s
}
