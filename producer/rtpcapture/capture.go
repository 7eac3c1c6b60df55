package rtpcapture

import (
	"net"
	"sync"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/codecs"
	"github.com/mediaroom/producer/producer/logger"
	"github.com/mediaroom/producer/producer/media"
	"github.com/mediaroom/producer/producer/metrics"
	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

// capture is the socket of one source and the tracks fed from it.
type capture struct {
	source      Source
	conn        net.PacketConn
	interceptor interceptor.Interceptor
	streamInfo  *interceptor.StreamInfo
	rtpReader   interceptor.RTPReader
	rtcpWriter  interceptor.RTCPWriter

	mu     sync.Mutex
	tracks map[string]*media.StaticTrack
	remote net.Addr
	ssrc   uint32
	closed bool

	closeOnce sync.Once
}

func newCapture(
	source Source,
	conn net.PacketConn,
	ceptor interceptor.Interceptor,
	codec webrtc.RTPCodecParameters,
	params codecs.InterceptorParams,
) *capture {
	c := &capture{
		source:      source,
		conn:        conn,
		interceptor: ceptor,
		tracks:      map[string]*media.StaticTrack{},
	}

	c.streamInfo = &interceptor.StreamInfo{
		ID:                  source.DeviceID,
		PayloadType:         uint8(params.PayloadType),
		RTPHeaderExtensions: params.RTPHeaderExtensions,
		MimeType:            codec.MimeType,
		ClockRate:           codec.ClockRate,
		Channels:            codec.Channels,
		SDPFmtpLine:         codec.SDPFmtpLine,
		RTCPFeedback:        params.RTCPFeedback,
	}

	c.rtpReader = ceptor.BindRemoteStream(c.streamInfo, interceptor.RTPReaderFunc(c.readRTP))
	c.rtcpWriter = ceptor.BindRTCPWriter(interceptor.RTCPWriterFunc(c.writeRTCP))

	return c
}

func (c *capture) readRTP(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
	n, addr, err := c.conn.ReadFrom(b)
	if err != nil {
		return 0, a, errors.Trace(err)
	}

	c.mu.Lock()
	c.remote = addr
	c.mu.Unlock()

	return n, a, nil
}

func (c *capture) writeRTCP(pkts []rtcp.Packet, a interceptor.Attributes) (int, error) {
	c.mu.Lock()
	remote := c.remote
	c.mu.Unlock()

	if remote == nil {
		return 0, nil
	}

	b, err := rtcp.Marshal(pkts)
	if err != nil {
		return 0, errors.Annotatef(err, "marshal RTCP")
	}

	n, err := c.conn.WriteTo(b, remote)

	return n, errors.Annotatef(err, "write RTCP")
}

// requestKeyframe sends a picture loss indication to whoever streams to
// the source.
func (c *capture) requestKeyframe() {
	c.mu.Lock()
	ssrc := c.ssrc
	c.mu.Unlock()

	_, _ = c.rtcpWriter.Write([]rtcp.Packet{
		&rtcp.PictureLossIndication{MediaSSRC: ssrc},
	}, interceptor.Attributes{})
}

func (c *capture) add(track *media.StaticTrack) {
	c.mu.Lock()
	c.tracks[track.ID()] = track
	c.mu.Unlock()
}

// remove returns the number of remaining tracks.
func (c *capture) remove(trackID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.tracks, trackID)

	return len(c.tracks)
}

func (c *capture) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

func (c *capture) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.tracks)
}

func (c *capture) snapshot() []media.Track {
	c.mu.Lock()
	defer c.mu.Unlock()

	tracks := make([]media.Track, 0, len(c.tracks))

	for _, track := range c.tracks {
		tracks = append(tracks, track)
	}

	return tracks
}

func (c *capture) forward(packet *rtp.Packet) {
	c.mu.Lock()
	c.ssrc = packet.SSRC

	tracks := make([]*media.StaticTrack, 0, len(c.tracks))
	for _, track := range c.tracks {
		tracks = append(tracks, track)
	}
	c.mu.Unlock()

	for _, track := range tracks {
		clone := *packet

		// A track may end between the snapshot and the write.
		_ = track.WriteRTP(&clone)
	}
}

func (c *capture) close() error {
	var err error

	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.interceptor.UnbindRemoteStream(c.streamInfo)
		err = c.conn.Close()
	})

	return errors.Trace(err)
}

// read forwards packets from the socket of c until it is closed.
func (p *Provider) read(c *capture) {
	log := p.log.WithCtx(logger.Ctx{
		"device_id": c.source.DeviceID,
		"listen":    c.conn.LocalAddr().String(),
	})

	log.Info("Reading source", nil)
	defer log.Info("Source closed", nil)

	packets := metrics.CapturedPacketsTotal.WithLabelValues(c.source.DeviceID)

	for {
		buf := p.pool.Get()

		n, _, err := c.rtpReader.Read(buf, interceptor.Attributes{})
		if err != nil {
			p.pool.Put(buf)

			if !c.isClosed() {
				log.Error("Read RTP", err, nil)
			}

			return
		}

		packet := &rtp.Packet{}

		if err := packet.Unmarshal(buf[:n]); err != nil {
			p.pool.Put(buf)
			log.Debug("Drop malformed packet", logger.Ctx{
				"error": err.Error(),
				"bytes": n,
			})

			continue
		}

		packets.Inc()
		c.forward(packet)

		p.pool.Put(buf)
	}
}
