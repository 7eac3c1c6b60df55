package coordinator

import (
	"context"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/logger"
	"github.com/mediaroom/producer/producer/media"
)

// UpdatePreviewMic captures the microphone for local monitoring and parks
// the track so a later UpdateMic produces it without capturing again.
func (c *Coordinator) UpdatePreviewMic(ctx context.Context, opts UpdateOptions) {
	c.updatePreview(ctx, media.KindMic, opts)
}

// StopPreviewMic releases the microphone preview.
func (c *Coordinator) StopPreviewMic(ctx context.Context) {
	c.stopPreview(media.KindMic)
}

// UpdatePreviewWebcam captures the webcam for local monitoring, with blur
// when enabled.
func (c *Coordinator) UpdatePreviewWebcam(ctx context.Context, opts UpdateOptions) {
	c.updatePreview(ctx, media.KindWebcam, opts)
}

// StopPreviewWebcam releases the webcam preview.
func (c *Coordinator) StopPreviewWebcam(ctx context.Context) {
	c.stopPreview(media.KindWebcam)
}

// PreviewTrack returns the track parked for kind, if any.
func (c *Coordinator) PreviewTrack(kind media.Kind) media.Track {
	return c.kinds[kind].slot.Peek()
}

func (c *Coordinator) updatePreview(ctx context.Context, kind media.Kind, opts UpdateOptions) {
	ctx = detach(ctx)

	done := c.begin(kind, opUpdatePreview)

	unlock := c.lock(kind)
	err := c.updatePreviewLocked(ctx, kind, opts)
	unlock()

	done(err)
}

func (c *Coordinator) updatePreviewLocked(ctx context.Context, kind media.Kind, opts UpdateOptions) error {
	generation := c.currentGeneration()
	ks := c.kinds[kind]
	// A replaced parked track hands its place in the production queue to
	// the new preview.
	pending := ks.pending

	snap, err := c.settings.Get(ctx)
	if err != nil {
		return errors.Annotatef(err, "read settings")
	}

	track, err := c.captureUserMedia(ctx, kind, ks, snap, preferredDevice(kind, snap, opts))
	if err != nil {
		return errors.Trace(err)
	}

	captured := track.Settings()

	track, err = c.withEffect(ctx, kind, snap, track)
	if err != nil {
		return errors.Trace(err)
	}

	if c.stale(generation) {
		track.Stop()

		return errors.Trace(errStale)
	}

	if opts.UpdateSelection {
		c.selectDevice(ctx, kind, captured.DeviceID)
	}

	if err := ks.slot.Put(track); err != nil {
		track.Stop()

		return errors.Annotatef(err, "preview %s", kind)
	}

	ks.pending = pending
	c.session.SetPreview(kind, track.ID())

	c.log.Info("Preview started", logger.Ctx{
		"kind":      kind,
		"track_id":  track.ID(),
		"device_id": captured.DeviceID,
	})

	return nil
}

// stopPreview leaves a track parked for production alone.
func (c *Coordinator) stopPreview(kind media.Kind) {
	done := c.begin(kind, opStopPreview)

	unlock := c.lock(kind)

	ks := c.kinds[kind]
	if !ks.pending {
		c.releaseParked(kind, ks)
	}

	unlock()

	done(nil)
}

// hasPreview reports whether kind holds a preview that is not waiting for
// production.
func (c *Coordinator) hasPreview(kind media.Kind) bool {
	unlock := c.lock(kind)
	defer unlock()

	ks := c.kinds[kind]

	return !ks.pending && ks.slot.Peek() != nil
}
