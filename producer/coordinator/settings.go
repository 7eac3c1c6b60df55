package coordinator

import (
	"context"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/media"
	"github.com/mediaroom/producer/producer/settings"
)

// Area groups the settings that affect the same kinds.
type Area string

const (
	AreaAudio  Area = "audio"
	AreaVideo  Area = "video"
	AreaScreen Area = "screen"
)

var ErrUnknownArea = errors.New("unknown settings area")

func ParseArea(s string) (Area, error) {
	switch area := Area(s); area {
	case AreaAudio, AreaVideo, AreaScreen:
		return area, nil
	default:
		return "", errors.Annotatef(ErrUnknownArea, "%q", s)
	}
}

// AreaOf returns the settings area that configures kind.
func AreaOf(kind media.Kind) Area {
	switch kind.Modality() {
	case media.ModalityAudio:
		return AreaAudio
	case media.ModalityScreen:
		return AreaScreen
	default:
		return AreaVideo
	}
}

// UpdateSettings stores patch and restarts what area affects.
func (c *Coordinator) UpdateSettings(ctx context.Context, area Area, patch settings.Patch) {
	switch area {
	case AreaAudio:
		c.UpdateAudioSettings(ctx, patch)
	case AreaVideo:
		c.UpdateVideoSettings(ctx, patch)
	case AreaScreen:
		c.UpdateScreenshareSettings(ctx, patch)
	}
}

// UpdateAudioSettings stores patch, restarts the microphone when it was
// enabled and recaptures an open microphone preview.
func (c *Coordinator) UpdateAudioSettings(ctx context.Context, patch settings.Patch) {
	ctx = detach(ctx)

	done := c.begin(media.KindMic, opUpdateSettings)

	enabled := c.session.Kind(media.KindMic).Enabled
	preview := c.hasPreview(media.KindMic)

	err := c.writeSettings(ctx, patch)
	if err == nil {
		c.session.SetEnabled(media.KindMic, false)
		c.StopPreviewMic(ctx)
		c.Stop(ctx, media.KindMic)

		if enabled {
			c.UpdateMic(ctx, UpdateOptions{})
		}

		if preview {
			c.UpdatePreviewMic(ctx, UpdateOptions{})
		}
	}

	done(err)
}

// UpdateVideoSettings stores patch, restarts the webcam and its preview
// when they were active and re-applies the settings to extra video.
func (c *Coordinator) UpdateVideoSettings(ctx context.Context, patch settings.Patch) {
	ctx = detach(ctx)

	done := c.begin(media.KindWebcam, opUpdateSettings)

	enabled := c.session.Kind(media.KindWebcam).Enabled
	preview := c.hasPreview(media.KindWebcam)
	extra := c.Sender(media.KindExtraVideo).Running()

	err := c.writeSettings(ctx, patch)
	if err == nil {
		c.session.SetEnabled(media.KindWebcam, false)
		c.StopPreviewWebcam(ctx)
		c.Stop(ctx, media.KindWebcam)

		if enabled {
			c.UpdateWebcam(ctx, UpdateOptions{})
		}

		if preview {
			c.UpdatePreviewWebcam(ctx, UpdateOptions{})
		}

		if extra {
			c.StartExtraVideo(ctx, UpdateOptions{})
		}
	}

	done(err)
}

// UpdateScreenshareSettings stores patch and re-applies it to a running
// share.
func (c *Coordinator) UpdateScreenshareSettings(ctx context.Context, patch settings.Patch) {
	ctx = detach(ctx)

	done := c.begin(media.KindScreen, opUpdateSettings)

	enabled := c.session.Kind(media.KindScreen).Enabled

	err := c.writeSettings(ctx, patch)
	if err == nil {
		c.session.SetEnabled(media.KindScreen, false)

		if enabled {
			c.UpdateScreenSharing(ctx)
		}
	}

	done(err)
}

func (c *Coordinator) writeSettings(ctx context.Context, patch settings.Patch) error {
	current, err := c.settings.Get(ctx)
	if err != nil {
		return errors.Annotatef(err, "read settings")
	}

	if err := patch.Apply(current).Validate(); err != nil {
		return errors.Trace(err)
	}

	if _, err := c.settings.Update(ctx, patch.Apply); err != nil {
		return errors.Annotatef(err, "write settings")
	}

	return nil
}
