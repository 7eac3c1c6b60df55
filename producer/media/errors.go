package media

import (
	"github.com/juju/errors"
)

var (
	// ErrNoDeviceAvailable is returned when enumeration finds no device of
	// the requested kind.
	ErrNoDeviceAvailable = errors.New("no device available")
	// ErrPermissionDenied is returned by a CaptureProvider when access to the
	// device is refused.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrSlotOccupied is returned when a track is put into a slot that
	// already owns a different track.
	ErrSlotOccupied = errors.New("slot occupied")
	ErrTrackEnded   = errors.New("track ended")
)
