// Package devices keeps the list of capture devices and resolves which one
// a capture should use.
package devices

import (
	"context"
	"sync"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/logger"
	"github.com/mediaroom/producer/producer/media"
	"github.com/mediaroom/producer/producer/metrics"
	"golang.org/x/sync/singleflight"
)

// Phase names a refresh point. Each phase refreshes at most once until it is
// invalidated or the directory is reset.
type Phase string

const (
	// PhaseInitial runs before the first capture of a kind.
	PhaseInitial Phase = "initial"
	// PhasePost runs after a capture succeeded, when labels are readable.
	PhasePost Phase = "post"
)

// Enumerator lists capture devices.
type Enumerator interface {
	EnumerateDevices(ctx context.Context) ([]media.DeviceInfo, error)
}

type Directory struct {
	log        logger.Logger
	enumerator Enumerator
	group      singleflight.Group

	mu         sync.RWMutex
	devices    []media.DeviceInfo
	done       map[Phase]bool
	generation uint64
}

func NewDirectory(log logger.Logger, enumerator Enumerator) *Directory {
	return &Directory{
		log:        log.WithNamespaceAppended("devices"),
		enumerator: enumerator,
		done:       map[Phase]bool{},
	}
}

// Refresh enumerates devices once per phase. Concurrent callers of the same
// phase share a single enumeration. The enumeration itself is not bound to
// ctx, a cancelled caller stops waiting but the others still get the result.
func (d *Directory) Refresh(ctx context.Context, phase Phase) error {
	d.mu.RLock()
	done := d.done[phase]
	d.mu.RUnlock()

	if done {
		return nil
	}

	ch := d.group.DoChan(string(phase), func() (interface{}, error) {
		d.mu.RLock()
		generation := d.generation
		refreshed := d.done[phase]
		d.mu.RUnlock()

		if refreshed {
			return nil, nil
		}

		metrics.DeviceRefreshesTotal.WithLabelValues(string(phase)).Inc()

		devices, err := d.enumerator.EnumerateDevices(context.Background())
		if err != nil {
			return nil, errors.Annotatef(err, "enumerate devices (%s)", phase)
		}

		d.mu.Lock()
		defer d.mu.Unlock()

		if generation == d.generation {
			d.devices = devices
			d.done[phase] = true
		}

		d.log.Debug("Devices refreshed", logger.Ctx{
			"phase":   phase,
			"devices": len(devices),
		})

		return nil, nil
	})

	select {
	case res := <-ch:
		return errors.Trace(res.Err)
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	}
}

// Invalidate allows phase to refresh again, for example after a device was
// plugged in.
func (d *Directory) Invalidate(phase Phase) {
	d.mu.Lock()
	delete(d.done, phase)
	d.mu.Unlock()
}

// Reset forgets every phase and the known devices. Enumerations that are in
// flight while Reset runs do not store their result.
func (d *Directory) Reset() {
	d.mu.Lock()
	d.generation++
	d.devices = nil
	d.done = map[Phase]bool{}
	d.mu.Unlock()

	d.group.Forget(string(PhaseInitial))
	d.group.Forget(string(PhasePost))
}

// Devices returns the devices seen by the last refresh.
func (d *Directory) Devices() []media.DeviceInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return append([]media.DeviceInfo(nil), d.devices...)
}

// ResolveDeviceID returns preferred when such a device of kind exists,
// otherwise the first device of kind. When there is none it returns an
// empty id and ErrNoDeviceAvailable; callers treat that as a warning and let
// the capture provider pick its default.
func (d *Directory) ResolveDeviceID(preferred string, kind media.DeviceKind) (string, error) {
	candidates := media.FilterDevices(d.Devices(), kind)

	if preferred != "" {
		for _, device := range candidates {
			if device.DeviceID == preferred {
				return preferred, nil
			}
		}
	}

	if len(candidates) > 0 {
		return candidates[0].DeviceID, nil
	}

	return "", errors.Annotatef(media.ErrNoDeviceAvailable, "%s", kind)
}
