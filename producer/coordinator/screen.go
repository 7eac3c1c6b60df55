package coordinator

import (
	"context"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/media"
	"github.com/mediaroom/producer/producer/metrics"
	"github.com/mediaroom/producer/producer/settings"
)

// UpdateScreenSharing starts sharing the display, with its audio when the
// capture offers one. A running share gets the screen settings re-applied.
func (c *Coordinator) UpdateScreenSharing(ctx context.Context) {
	ctx = detach(ctx)

	done := c.begin(media.KindScreen, opUpdate)

	unlock := c.lock(media.KindScreen, media.KindScreenAudio)
	started, err := c.updateScreenLocked(ctx)
	c.reflect(media.KindScreen, err, started)
	unlock()

	done(err)
}

// StopScreenSharing stops the screen and its audio.
func (c *Coordinator) StopScreenSharing(ctx context.Context) {
	c.Stop(ctx, media.KindScreen)
}

func (c *Coordinator) updateScreenLocked(ctx context.Context) (started bool, err error) {
	if !c.session.Capabilities().Allows(media.KindScreen) {
		return false, errors.Annotatef(ErrNotAuthorized, "update %s", media.KindScreen)
	}

	generation := c.currentGeneration()
	screen := c.kinds[media.KindScreen]
	audio := c.kinds[media.KindScreenAudio]

	snap, err := c.settings.Get(ctx)
	if err != nil {
		return !screen.sender.Running(), errors.Annotatef(err, "read settings")
	}

	if screen.sender.Running() {
		return false, errors.Trace(c.reapply(snap, media.KindScreen, media.KindScreenAudio))
	}

	video, sound, err := c.captureDisplay(ctx, snap)
	if err != nil {
		return true, errors.Trace(err)
	}

	if c.stale(generation) {
		video.Stop()
		media.StopTracks(tracksOf(sound))

		return true, errors.Trace(errStale)
	}

	options := c.startOptions(media.KindScreen, snap, video, video.Settings())

	err = c.produce(ctx, media.KindScreen, screen, options, generation)
	if err != nil && errors.Cause(err) != errDeferred {
		media.StopTracks(tracksOf(sound))

		return true, errors.Trace(err)
	}

	if sound == nil {
		return true, err
	}

	// Screen audio is optional, failing to produce it does not fail the
	// share.
	var audioErr error

	// The gate was already waited out for the screen.
	if errors.Cause(err) == errDeferred {
		audioErr = c.park(media.KindScreenAudio, audio, sound)
	} else {
		audioOptions := c.startOptions(media.KindScreenAudio, snap, sound, sound.Settings())
		audioErr = c.produce(ctx, media.KindScreenAudio, audio, audioOptions, generation)
	}

	switch errors.Cause(audioErr) {
	case nil, errDeferred:
		c.session.SetFlags(media.KindScreenAudio, true, false)
	case errStale:
	default:
		c.log.Error("Produce screen audio", audioErr, nil)
	}

	return true, err
}

// captureDisplay returns the parked screen tracks or captures the display.
// sound is nil when there is no display audio.
func (c *Coordinator) captureDisplay(
	ctx context.Context,
	snap settings.Snapshot,
) (video media.Track, sound media.Track, err error) {
	screen := c.kinds[media.KindScreen]
	audio := c.kinds[media.KindScreenAudio]

	if screen.pending {
		video = c.takeParked(media.KindScreen, screen)
	}

	if audio.pending {
		sound = c.takeParked(media.KindScreenAudio, audio)
	}

	if video != nil {
		return video, sound, nil
	}

	media.StopTracks(tracksOf(sound))
	c.releaseParked(media.KindScreen, screen)
	c.releaseParked(media.KindScreenAudio, audio)

	audioConstraints := constraintsFor(media.KindScreenAudio, snap, "")

	metrics.CapturesTotal.WithLabelValues(media.KindScreen.String()).Inc()

	tracks, err := c.provider.GetDisplayMedia(ctx, media.DisplayMediaConstraints{
		Video: constraintsFor(media.KindScreen, snap, ""),
		Audio: &audioConstraints,
	})
	if err != nil {
		return nil, nil, errors.Annotatef(err, "capture display")
	}

	sounds, videos := media.SplitTracks(tracks)

	if len(videos) == 0 {
		media.StopTracks(sounds)

		return nil, nil, errors.Annotatef(ErrNoTrackProduced, "capture display")
	}

	media.StopTracks(videos[1:])

	if len(sounds) > 0 {
		media.StopTracks(sounds[1:])
		sound = sounds[0]
	}

	return videos[0], sound, nil
}

func tracksOf(track media.Track) []media.Track {
	if track == nil {
		return nil
	}

	return []media.Track{track}
}
