package coordinator

import (
	"context"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/media"
)

// UpdateMic starts the microphone, switches it to opts.NewDeviceID or
// re-applies the audio settings to the running track.
func (c *Coordinator) UpdateMic(ctx context.Context, opts UpdateOptions) {
	c.updateUserMedia(ctx, media.KindMic, opts)
}

// StopMic stops producing the microphone.
func (c *Coordinator) StopMic(ctx context.Context) {
	c.Stop(ctx, media.KindMic)
}

// PauseMic mutes the produced microphone.
func (c *Coordinator) PauseMic(ctx context.Context) {
	c.Pause(ctx, media.KindMic)
}

// ResumeMic unmutes the produced microphone.
func (c *Coordinator) ResumeMic(ctx context.Context) {
	c.Resume(ctx, media.KindMic)
}

// UpdateWebcam starts the webcam, switches it to opts.NewDeviceID or
// re-applies the video settings to the webcam and extra video tracks.
func (c *Coordinator) UpdateWebcam(ctx context.Context, opts UpdateOptions) {
	c.updateUserMedia(ctx, media.KindWebcam, opts)
}

// StopWebcam stops producing the webcam.
func (c *Coordinator) StopWebcam(ctx context.Context) {
	c.Stop(ctx, media.KindWebcam)
}

// StartExtraVideo produces a second camera next to the webcam.
func (c *Coordinator) StartExtraVideo(ctx context.Context, opts UpdateOptions) {
	c.updateUserMedia(ctx, media.KindExtraVideo, opts)
}

// StopExtraVideo stops producing the second camera.
func (c *Coordinator) StopExtraVideo(ctx context.Context) {
	c.Stop(ctx, media.KindExtraVideo)
}

func (c *Coordinator) updateUserMedia(ctx context.Context, kind media.Kind, opts UpdateOptions) {
	kinds := []media.Kind{kind}
	if kind == media.KindWebcam {
		kinds = append(kinds, media.KindExtraVideo)
	}

	ctx = detach(ctx)

	done := c.begin(kind, opUpdate)

	unlock := c.lock(kinds...)
	started, err := c.updateUserMediaLocked(ctx, kind, opts)
	c.reflect(kind, err, started)
	unlock()

	done(err)
}

// updateUserMediaLocked reports whether it attempted to start kind, as
// opposed to reconfiguring an already produced one.
func (c *Coordinator) updateUserMediaLocked(
	ctx context.Context,
	kind media.Kind,
	opts UpdateOptions,
) (started bool, err error) {
	if !c.session.Capabilities().Allows(kind) {
		return false, errors.Annotatef(ErrNotAuthorized, "update %s", kind)
	}

	generation := c.currentGeneration()
	ks := c.kinds[kind]

	if opts.NewDeviceID != "" && persistsSelection(kind) {
		c.selectDevice(ctx, kind, opts.NewDeviceID)
	}

	snap, err := c.settings.Get(ctx)
	if err != nil {
		return !ks.sender.Running(), errors.Annotatef(err, "read settings")
	}

	start := !ks.sender.Running()
	replace := !start && opts.NewDeviceID != "" && opts.NewDeviceID != c.deviceOf(ks.sender.Track())

	if !start && !replace {
		reapply := []media.Kind{kind}
		if kind == media.KindWebcam {
			reapply = append(reapply, media.KindExtraVideo)
		}

		return false, errors.Trace(c.reapply(snap, reapply...))
	}

	var track media.Track

	if start {
		track = c.takeParked(kind, ks)
	}

	if track == nil {
		track, err = c.captureUserMedia(ctx, kind, ks, snap, preferredDevice(kind, snap, opts))
		if err != nil {
			return start, errors.Trace(err)
		}
	}

	if c.stale(generation) {
		track.Stop()

		return start, errors.Trace(errStale)
	}

	captured := c.effects.Origin(track).Settings()

	track, err = c.withEffect(ctx, kind, snap, track)
	if err != nil {
		return start, errors.Trace(err)
	}

	if c.stale(generation) {
		track.Stop()

		return start, errors.Trace(errStale)
	}

	if persistsSelection(kind) {
		c.selectDevice(ctx, kind, captured.DeviceID)
	}

	options := c.startOptions(kind, snap, track, captured)

	return start, c.produce(ctx, kind, ks, options, generation)
}
