package coordinator

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/codecs"
	"github.com/mediaroom/producer/producer/devices"
	"github.com/mediaroom/producer/producer/encodings"
	"github.com/mediaroom/producer/producer/logger"
	"github.com/mediaroom/producer/producer/media"
	"github.com/mediaroom/producer/producer/metrics"
	"github.com/mediaroom/producer/producer/sender"
	"github.com/mediaroom/producer/producer/settings"
	"github.com/pion/webrtc/v3"
)

const startBitrate = 1000

func opusOptions(snap settings.Snapshot) codecs.Options {
	return codecs.Options{
		OpusStereo:          snap.OpusStereo,
		OpusDtx:             snap.OpusDtx,
		OpusFec:             snap.OpusFec,
		OpusPtime:           snap.OpusPtime,
		OpusMaxPlaybackRate: snap.OpusMaxPlaybackRate,
	}
}

// startOptions describes how kind is produced. dims are the settings of the
// captured track, before any effect was applied.
func (c *Coordinator) startOptions(
	kind media.Kind,
	snap settings.Snapshot,
	track media.Track,
	dims media.TrackSettings,
) sender.StartOptions {
	options := sender.StartOptions{
		Track:          track,
		ZeroRTPOnPause: true,
		AppData:        sender.AppData{Source: kind},
	}

	switch kind {
	case media.KindMic:
		options.CodecOptions = opusOptions(snap)
		options.CodecHint = webrtc.MimeTypeOpus
	case media.KindScreenAudio:
		options.CodecOptions = opusOptions(snap)
	case media.KindWebcam:
		options.CodecHint = webrtc.MimeTypeVP8

		if c.config.Simulcast {
			options.Encodings = encodings.ForDimensions(dims.Width, dims.Height, false)
		}
	case media.KindExtraVideo:
		options.CodecOptions.VideoGoogleStartBitrate = startBitrate

		if c.config.Simulcast {
			options.Encodings = encodings.ForDimensions(dims.Width, dims.Height, false)
		}
	case media.KindScreen:
		options.CodecOptions.VideoGoogleStartBitrate = startBitrate

		if c.config.SimulcastSharing {
			options.Encodings = encodings.ForDimensions(dims.Width, dims.Height, true)
		}
	}

	return options
}

func constraintsFor(kind media.Kind, snap settings.Snapshot, deviceID string) media.Constraints {
	switch kind {
	case media.KindMic, media.KindScreenAudio:
		return snap.AudioConstraints(deviceID)
	case media.KindScreen:
		return snap.ScreenConstraints()
	default:
		return snap.VideoConstraints(deviceID)
	}
}

// preferredDevice is the device kind should be captured from when nothing
// else was requested. Extra video never follows the selection, it is the
// second camera.
func preferredDevice(kind media.Kind, snap settings.Snapshot, opts UpdateOptions) string {
	if opts.NewDeviceID != "" {
		return opts.NewDeviceID
	}

	if kind == media.KindExtraVideo {
		return ""
	}

	return snap.SelectedDevice(kind.DeviceKind())
}

// persistsSelection reports whether kind records its device as the
// selected one.
func persistsSelection(kind media.Kind) bool {
	return kind == media.KindMic || kind == media.KindWebcam
}

func (c *Coordinator) selectDevice(ctx context.Context, kind media.Kind, deviceID string) {
	if deviceID == "" {
		return
	}

	_, err := c.settings.Update(ctx, func(snap settings.Snapshot) settings.Snapshot {
		return snap.WithSelectedDevice(kind.DeviceKind(), deviceID)
	})
	if err != nil {
		c.log.Warn("Store selected device", logger.Ctx{
			"kind":      kind,
			"device_id": deviceID,
			"error":     err.Error(),
		})
	}
}

// resolveDevice refreshes the directory and picks the device to capture
// from. No device at all is not an error, the provider then picks its
// default.
func (c *Coordinator) resolveDevice(ctx context.Context, kind media.Kind, preferred string) (string, error) {
	if err := c.devices.Refresh(ctx, devices.PhaseInitial); err != nil {
		return "", errors.Annotatef(err, "refresh devices")
	}

	deviceID, err := c.devices.ResolveDeviceID(preferred, kind.DeviceKind())
	if err != nil {
		if errors.Cause(err) != media.ErrNoDeviceAvailable {
			return "", errors.Trace(err)
		}

		c.log.Warn("No device available", logger.Ctx{
			"kind": kind,
		})
	}

	return deviceID, nil
}

// captureUserMedia acquires a single track of kind. A track parked for kind
// is released first so the device is never held twice.
func (c *Coordinator) captureUserMedia(
	ctx context.Context,
	kind media.Kind,
	ks *kindState,
	snap settings.Snapshot,
	preferred string,
) (media.Track, error) {
	deviceID, err := c.resolveDevice(ctx, kind, preferred)
	if err != nil {
		return nil, errors.Trace(err)
	}

	c.releaseParked(kind, ks)

	constraints := constraintsFor(kind, snap, deviceID)

	var request media.UserMediaConstraints
	if kind.IsAudio() {
		request.Audio = &constraints
	} else {
		request.Video = &constraints
	}

	metrics.CapturesTotal.WithLabelValues(kind.String()).Inc()

	tracks, err := c.provider.GetUserMedia(ctx, request)
	if err != nil {
		return nil, errors.Annotatef(err, "capture %s", kind)
	}

	audio, video := media.SplitTracks(tracks)

	wanted, unwanted := video, audio
	if kind.IsAudio() {
		wanted, unwanted = audio, video
	}

	media.StopTracks(unwanted)

	if len(wanted) == 0 {
		return nil, errors.Annotatef(ErrNoTrackProduced, "capture %s", kind)
	}

	media.StopTracks(wanted[1:])

	if err := c.devices.Refresh(ctx, devices.PhasePost); err != nil {
		c.log.Warn("Refresh devices after capture", logger.Ctx{
			"kind":  kind,
			"error": err.Error(),
		})
	}

	c.log.Info("Captured", logger.Ctx{
		"kind":      kind,
		"track_id":  wanted[0].ID(),
		"device_id": wanted[0].Settings().DeviceID,
	})

	return wanted[0], nil
}

// withEffect applies blur to video tracks when enabled. On error the input
// track has been stopped.
func (c *Coordinator) withEffect(
	ctx context.Context,
	kind media.Kind,
	snap settings.Snapshot,
	track media.Track,
) (media.Track, error) {
	if kind.IsAudio() || kind == media.KindScreen || !snap.BlurEnabled {
		return track, nil
	}

	if c.effects.IsOutput(track.ID()) {
		return track, nil
	}

	derived, err := c.effects.Apply(ctx, track)
	if err != nil {
		track.Stop()

		return nil, errors.Annotatef(err, "blur %s", kind)
	}

	return derived, nil
}

// reapply applies the current settings to the tracks kinds already
// produce, without capturing again.
func (c *Coordinator) reapply(snap settings.Snapshot, kinds ...media.Kind) error {
	var merr *multierror.Error

	for _, kind := range kinds {
		track := c.kinds[kind].sender.Track()
		if track == nil {
			continue
		}

		if err := track.ApplyConstraints(constraintsFor(kind, snap, "")); err != nil {
			merr = multierror.Append(merr, errors.Annotatef(err, "apply constraints to %s", kind))

			continue
		}

		c.log.Debug("Constraints applied", logger.Ctx{
			"kind":     kind,
			"track_id": track.ID(),
		})
	}

	return merr.ErrorOrNil()
}

// deviceOf returns the device a produced track was captured from, looking
// through effect outputs.
func (c *Coordinator) deviceOf(track media.Track) string {
	if track == nil {
		return ""
	}

	return c.effects.Origin(track).Settings().DeviceID
}
