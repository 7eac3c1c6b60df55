package rtpcapture

import (
	"context"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/codecs"
	"github.com/mediaroom/producer/producer/logger"
	"github.com/mediaroom/producer/producer/media"
	"github.com/oxtoacart/bpool"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
)

// ReceiveMTU is the largest RTP packet read from a source.
const ReceiveMTU = 1500

const bufferPoolSize = 64

type Params struct {
	Log    logger.Logger
	Codecs *codecs.Registry
	// Interceptor processes every source stream, a NoOp when nil.
	Interceptor interceptor.Interceptor
	Sources     []Source
	Display     Display
}

// Provider implements media.CaptureProvider. Every source is read by at
// most one socket, tracks captured from the same source share it the way
// two browser tracks share a camera.
type Provider struct {
	log         logger.Logger
	codecs      *codecs.Registry
	interceptor interceptor.Interceptor
	sources     []Source
	display     Display
	pool        *bpool.BytePool

	mu       sync.Mutex
	captures map[string]*capture
	closed   bool
	wg       sync.WaitGroup
}

var _ media.CaptureProvider = &Provider{}

func NewProvider(params Params) (*Provider, error) {
	for _, source := range params.Sources {
		if err := source.Validate(); err != nil {
			return nil, errors.Trace(err)
		}
	}

	for _, source := range []*Source{params.Display.Video, params.Display.Audio} {
		if source == nil {
			continue
		}

		if err := source.Validate(); err != nil {
			return nil, errors.Annotatef(err, "display")
		}
	}

	ceptor := params.Interceptor
	if ceptor == nil {
		ceptor = &interceptor.NoOp{}
	}

	registry := params.Codecs
	if registry == nil {
		registry = codecs.NewRegistryDefault()
	}

	return &Provider{
		log:         params.Log.WithNamespaceAppended("rtpcapture"),
		codecs:      registry,
		interceptor: ceptor,
		sources:     params.Sources,
		display:     params.Display,
		pool:        bpool.NewBytePool(bufferPoolSize, ReceiveMTU),
		captures:    map[string]*capture{},
	}, nil
}

// EnumerateDevices lists the configured camera and microphone sources.
// Display sources are not devices.
func (p *Provider) EnumerateDevices(ctx context.Context) ([]media.DeviceInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}

	devices := make([]media.DeviceInfo, 0, len(p.sources))

	for _, source := range p.sources {
		devices = append(devices, source.DeviceInfo())
	}

	return devices, nil
}

func (p *Provider) lookup(kind media.DeviceKind, deviceID string) (Source, error) {
	for _, source := range p.sources {
		if source.Kind != kind {
			continue
		}

		if deviceID == "" || source.DeviceID == deviceID {
			return source, nil
		}
	}

	if deviceID == "" {
		return Source{}, errors.Annotatef(media.ErrNoDeviceAvailable, "%s", kind)
	}

	return Source{}, errors.Annotatef(media.ErrNoDeviceAvailable, "%s %s", kind, deviceID)
}

func (p *Provider) GetUserMedia(
	ctx context.Context,
	constraints media.UserMediaConstraints,
) ([]media.Track, error) {
	requests := []struct {
		kind        media.DeviceKind
		constraints *media.Constraints
	}{
		{media.DeviceKindAudioInput, constraints.Audio},
		{media.DeviceKindVideoInput, constraints.Video},
	}

	var tracks []media.Track

	for _, req := range requests {
		if req.constraints == nil {
			continue
		}

		source, err := p.lookup(req.kind, req.constraints.DeviceID)
		if err != nil {
			media.StopTracks(tracks)

			return nil, errors.Trace(err)
		}

		track, err := p.open(ctx, source, *req.constraints)
		if err != nil {
			media.StopTracks(tracks)

			return nil, errors.Trace(err)
		}

		tracks = append(tracks, track)
	}

	return tracks, nil
}

func (p *Provider) GetDisplayMedia(
	ctx context.Context,
	constraints media.DisplayMediaConstraints,
) ([]media.Track, error) {
	if p.display.Video == nil {
		return nil, errors.Annotatef(media.ErrNoDeviceAvailable, "no display source")
	}

	video, err := p.open(ctx, *p.display.Video, constraints.Video)
	if err != nil {
		return nil, errors.Trace(err)
	}

	tracks := []media.Track{video}

	if constraints.Audio == nil || p.display.Audio == nil {
		return tracks, nil
	}

	audio, err := p.open(ctx, *p.display.Audio, *constraints.Audio)
	if err != nil {
		// Display audio is optional.
		p.log.Warn("Open display audio", logger.Ctx{
			"error": err.Error(),
		})

		return tracks, nil
	}

	return append(tracks, audio), nil
}

// settingsFor reports the native format of source where it is configured
// and the requested one elsewhere. The stream is never re-encoded.
func settingsFor(source Source, constraints media.Constraints) media.TrackSettings {
	settings := media.TrackSettings{}.Apply(constraints)
	native := source.settings()

	settings.DeviceID = native.DeviceID
	settings.GroupID = native.GroupID

	if native.Width > 0 && native.Height > 0 {
		settings.Width, settings.Height = native.Width, native.Height
	}

	if native.FrameRate > 0 {
		settings.FrameRate = native.FrameRate
	}

	if native.SampleRate > 0 {
		settings.SampleRate = native.SampleRate
	}

	if native.ChannelCount > 0 {
		settings.ChannelCount = native.ChannelCount
	}

	return settings
}

// open returns a new track fed by source, starting to read the source when
// no other track does.
func (p *Provider) open(ctx context.Context, source Source, constraints media.Constraints) (media.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}

	typ := webrtc.RTPCodecTypeVideo
	if source.Kind == media.DeviceKindAudioInput {
		typ = webrtc.RTPCodecTypeAudio
	}

	codec, err := p.codecs.PreferredCodec(source.MimeType, typ)
	if err != nil {
		return nil, errors.Annotatef(err, "codec for %s", source.DeviceID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errors.Annotatef(media.ErrNoDeviceAvailable, "provider closed")
	}

	c, ok := p.captures[source.DeviceID]
	if !ok {
		c, err = p.listen(source, codec)
		if err != nil {
			return nil, errors.Trace(err)
		}

		p.captures[source.DeviceID] = c

		p.wg.Add(1)

		go func() {
			defer p.wg.Done()
			p.read(c)
		}()
	}

	track, err := media.NewStaticTrack(media.StaticTrackParams{
		ID:       uuid.New().String(),
		Label:    source.DeviceInfo().Label,
		Codec:    codec.RTPCodecCapability,
		Settings: settingsFor(source, constraints),
		Keyframe: c.requestKeyframe,
	})
	if err != nil {
		if !ok {
			p.release(c)
		}

		return nil, errors.Annotatef(err, "track for %s", source.DeviceID)
	}

	c.add(track)

	track.OnStop(func() {
		p.detach(c, track.ID())
	})

	p.log.Info("Capture opened", logger.Ctx{
		"device_id": source.DeviceID,
		"track_id":  track.ID(),
		"mime_type": codec.MimeType,
	})

	return track, nil
}

func (p *Provider) listen(source Source, codec webrtc.RTPCodecParameters) (*capture, error) {
	conn, err := net.ListenPacket("udp", source.Listen)
	if err != nil {
		return nil, errors.Annotatef(err, "listen %s for %s", source.Listen, source.DeviceID)
	}

	params, err := p.codecs.InterceptorParamsForCodec(codec.RTPCodecCapability)
	if err != nil {
		_ = conn.Close()

		return nil, errors.Trace(err)
	}

	return newCapture(source, conn, p.interceptor, codec, params), nil
}

// detach drops a stopped track and closes the socket of its source when
// it was the last one.
func (p *Provider) detach(c *capture, trackID string) {
	if c.remove(trackID) > 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// a new track may have attached in between
	if c.len() > 0 {
		return
	}

	p.release(c)
}

// release must be called with p.mu held.
func (p *Provider) release(c *capture) {
	if p.captures[c.source.DeviceID] == c {
		delete(p.captures, c.source.DeviceID)
	}

	if err := c.close(); err != nil {
		p.log.Error("Close capture", errors.Trace(err), logger.Ctx{
			"device_id": c.source.DeviceID,
		})
	}
}

// Addr returns the local address deviceID is read from, nil when no track
// of it is live.
func (p *Provider) Addr(deviceID string) net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.captures[deviceID]; ok {
		return c.conn.LocalAddr()
	}

	return nil
}

// Close stops every live track and waits for the readers to exit.
func (p *Provider) Close() error {
	p.mu.Lock()
	p.closed = true

	captures := make([]*capture, 0, len(p.captures))
	for _, c := range p.captures {
		captures = append(captures, c)
	}
	p.mu.Unlock()

	for _, c := range captures {
		media.StopTracks(c.snapshot())
	}

	p.mu.Lock()
	for _, c := range p.captures {
		p.release(c)
	}
	p.mu.Unlock()

	p.wg.Wait()

	return nil
}
