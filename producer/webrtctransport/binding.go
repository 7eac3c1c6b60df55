package webrtctransport

import (
	"sync"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/codecs"
	"github.com/mediaroom/producer/producer/logger"
	"github.com/mediaroom/producer/producer/media"
	"github.com/mediaroom/producer/producer/metrics"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
)

// binding is one track attached to the peer connection.
type binding struct {
	transport *Transport
	kind      media.Kind
	sender    *webrtc.RTPSender

	codecHint    string
	codecOptions codecs.Options

	mu     sync.Mutex
	track  media.Track
	paused bool
}

func (b *binding) ReplaceTrack(track media.Track) error {
	if err := b.sender.ReplaceTrack(track.Local()); err != nil {
		return errors.Annotatef(err, "replace %s track", b.kind)
	}

	b.mu.Lock()
	b.track = track
	b.mu.Unlock()

	return nil
}

// SetPaused only gates keyframe requests. Whether media flows is decided by
// the enabled flag of the track.
func (b *binding) SetPaused(paused bool) error {
	b.mu.Lock()
	b.paused = paused
	b.mu.Unlock()

	return nil
}

func (b *binding) Unbind() error {
	return errors.Trace(b.transport.unbind(b))
}

func (b *binding) state() BindingState {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BindingState{
		TrackID: b.track.ID(),
		Paused:  b.paused,
	}
}

// requestKeyframe forwards a remote keyframe request to the current track
// when its source supports it.
func (b *binding) requestKeyframe() {
	b.mu.Lock()
	track := b.track
	paused := b.paused
	b.mu.Unlock()

	if paused {
		return
	}

	requester, ok := track.(media.KeyframeRequester)
	if !ok {
		return
	}

	metrics.KeyframeRequestsTotal.WithLabelValues(string(b.kind)).Inc()
	requester.RequestKeyframe()
}

// readRTCP drains the RTCP of the sender until it stops. Reading is
// required for the interceptors to see receiver reports and NACKs.
func (b *binding) readRTCP(log logger.Logger) {
	received := metrics.RTCPPacketsReceivedTotal.WithLabelValues(string(b.kind))

	for {
		packets, _, err := b.sender.ReadRTCP()
		if err != nil {
			log.Debug("RTCP reader done", logger.Ctx{
				"error": err.Error(),
			})

			return
		}

		for _, packet := range packets {
			received.Inc()

			log.Trace("ReadRTCP", logger.Ctx{
				"packet": packet,
			})

			switch packet.(type) {
			case *rtcp.PictureLossIndication, *rtcp.FullIntraRequest:
				b.requestKeyframe()
			}
		}
	}
}
