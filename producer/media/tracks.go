package media

import (
	"github.com/pion/webrtc/v3"
)

// SplitTracks separates audio from video tracks.
func SplitTracks(tracks []Track) (audio []Track, video []Track) {
	for _, track := range tracks {
		if track.Kind() == webrtc.RTPCodecTypeAudio {
			audio = append(audio, track)
		} else {
			video = append(video, track)
		}
	}

	return audio, video
}

// StopTracks stops every track.
func StopTracks(tracks []Track) {
	for _, track := range tracks {
		track.Stop()
	}
}
