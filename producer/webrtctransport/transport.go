// Package webrtctransport carries produced tracks to a remote peer over a
// pion PeerConnection. The transport is the sender.Binder of every kind and
// drives the transport gate: the gate resolves once the peer connection
// exists and is bound while the connection is established.
package webrtctransport

import (
	"context"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/codecs"
	"github.com/mediaroom/producer/producer/gate"
	"github.com/mediaroom/producer/producer/logger"
	"github.com/mediaroom/producer/producer/media"
	"github.com/mediaroom/producer/producer/pionlog"
	"github.com/mediaroom/producer/producer/sender"
	"github.com/pion/interceptor"
	"github.com/pion/transport/vnet"
	"github.com/pion/webrtc/v3"
)

var (
	ErrClosed    = errors.New("transport closed")
	ErrNotOpened = errors.New("transport not opened")
)

type Params struct {
	Log        logger.Logger
	Gate       *gate.Gate
	Codecs     *codecs.Registry
	ICEServers []ICEServer
	Network    NetworkConfig
	// VNet replaces the host network when set.
	VNet *vnet.Net
}

// State describes the transport for the control surface.
type State struct {
	Opened            bool                        `json:"opened"`
	ConnectionState   string                      `json:"connectionState"`
	NegotiationNeeded bool                        `json:"negotiationNeeded"`
	Bindings          map[media.Kind]BindingState `json:"bindings"`
}

type BindingState struct {
	TrackID string `json:"trackId"`
	Mid     string `json:"mid,omitempty"`
	Paused  bool   `json:"paused"`
}

type Transport struct {
	log        logger.Logger
	gate       *gate.Gate
	api        *webrtc.API
	iceServers []ICEServer

	mu                sync.Mutex
	pc                *webrtc.PeerConnection
	connectionState   webrtc.PeerConnectionState
	negotiationNeeded bool
	bindings          map[media.Kind]*binding
	closed            bool

	wg sync.WaitGroup
}

var _ sender.Binder = &Transport{}

func New(params Params) (*Transport, error) {
	log := params.Log.WithNamespaceAppended("webrtc_transport")

	settingEngine := webrtc.SettingEngine{
		LoggerFactory: pionlog.NewFactory(log),
	}

	configureNetwork(log, &settingEngine, params.Network)

	if params.VNet != nil {
		settingEngine.SetVNet(params.VNet)
	}

	registry := params.Codecs
	if registry == nil {
		registry = codecs.NewRegistryDefault()
	}

	mediaEngine := &webrtc.MediaEngine{}

	if err := registry.RegisterWith(mediaEngine); err != nil {
		return nil, errors.Trace(err)
	}

	interceptors := &interceptor.Registry{}

	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptors); err != nil {
		return nil, errors.Annotatef(err, "register interceptors")
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithSettingEngine(settingEngine),
		webrtc.WithInterceptorRegistry(interceptors),
	)

	return &Transport{
		log:             log,
		gate:            params.Gate,
		api:             api,
		iceServers:      params.ICEServers,
		connectionState: webrtc.PeerConnectionStateNew,
		bindings:        map[media.Kind]*binding{},
	}, nil
}

// Open creates the peer connection and resolves the gate. Opening an open
// transport is a no-op.
func (t *Transport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errors.Trace(ErrClosed)
	}

	if t.pc != nil {
		return nil
	}

	pc, err := t.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: ICEServers(t.iceServers, time.Now()),
	})
	if err != nil {
		err = errors.Annotatef(err, "new peer connection")
		t.gate.Reject(err)

		return err
	}

	pc.OnConnectionStateChange(t.handleConnectionState)

	pc.OnICEGatheringStateChange(func(state webrtc.ICEGathererState) {
		t.log.Info("ICE gathering state changed", logger.Ctx{
			"state": state.String(),
		})
	})

	pc.OnNegotiationNeeded(func() {
		t.mu.Lock()
		t.negotiationNeeded = true
		t.mu.Unlock()

		t.log.Debug("Negotiation needed", nil)
	})

	t.pc = pc

	t.gate.Resolve()

	return nil
}

func (t *Transport) handleConnectionState(state webrtc.PeerConnectionState) {
	t.mu.Lock()
	t.connectionState = state
	t.mu.Unlock()

	t.log.Info("Connection state changed", logger.Ctx{
		"state": state.String(),
	})

	t.gate.SetBound(state == webrtc.PeerConnectionStateConnected)
}

func (t *Transport) peerConnection() (*webrtc.PeerConnection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, errors.Trace(ErrClosed)
	}

	if t.pc == nil {
		return nil, errors.Trace(ErrNotOpened)
	}

	return t.pc, nil
}

// Offer opens the transport when needed and returns a complete offer with
// every gathered candidate.
func (t *Transport) Offer(ctx context.Context) (webrtc.SessionDescription, error) {
	if err := t.Open(); err != nil {
		return webrtc.SessionDescription{}, errors.Trace(err)
	}

	pc, err := t.peerConnection()
	if err != nil {
		return webrtc.SessionDescription{}, errors.Trace(err)
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, errors.Annotatef(err, "create offer")
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)

	if err := pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, errors.Annotatef(err, "set local description")
	}

	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return webrtc.SessionDescription{}, errors.Annotatef(ctx.Err(), "gather candidates")
	}

	t.mu.Lock()
	t.negotiationNeeded = false
	t.mu.Unlock()

	desc, err := withCodecOptions(*pc.LocalDescription(), t.bindingsByMid())

	return desc, errors.Trace(err)
}

func (t *Transport) bindingsByMid() map[string]*binding {
	t.mu.Lock()

	bindings := make([]*binding, 0, len(t.bindings))
	for _, b := range t.bindings {
		bindings = append(bindings, b)
	}

	t.mu.Unlock()

	byMid := make(map[string]*binding, len(bindings))

	for _, b := range bindings {
		if mid := t.mid(b.sender); mid != "" {
			byMid[mid] = b
		}
	}

	return byMid
}

// Answer applies the remote answer to the last offer.
func (t *Transport) Answer(answer webrtc.SessionDescription) error {
	if answer.Type != webrtc.SDPTypeAnswer {
		return errors.NotValidf("session description of type %s", answer.Type)
	}

	pc, err := t.peerConnection()
	if err != nil {
		return errors.Trace(err)
	}

	return errors.Annotatef(pc.SetRemoteDescription(answer), "set remote description")
}

// Bind adds the track of options to the peer connection and starts reading
// the RTCP of its sender.
func (t *Transport) Bind(ctx context.Context, kind media.Kind, options sender.StartOptions) (sender.Binding, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}

	pc, err := t.peerConnection()
	if err != nil {
		return nil, errors.Trace(err)
	}

	rtpSender, err := pc.AddTrack(options.Track.Local())
	if err != nil {
		return nil, errors.Annotatef(err, "add %s track", kind)
	}

	b := &binding{
		transport:    t,
		kind:         kind,
		sender:       rtpSender,
		codecHint:    options.CodecHint,
		codecOptions: options.CodecOptions,
		track:        options.Track,
	}

	t.mu.Lock()

	if t.closed {
		t.mu.Unlock()

		return nil, errors.Trace(ErrClosed)
	}

	t.bindings[kind] = b
	t.wg.Add(1)

	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		b.readRTCP(t.log.WithCtx(logger.Ctx{"kind": kind}))
	}()

	t.log.Info("Track bound", logger.Ctx{
		"kind":       kind,
		"track_id":   options.Track.ID(),
		"codec_hint": options.CodecHint,
		"encodings":  len(options.Encodings),
	})

	return b, nil
}

func (t *Transport) unbind(b *binding) error {
	t.mu.Lock()

	if t.bindings[b.kind] == b {
		delete(t.bindings, b.kind)
	}

	pc := t.pc
	closed := t.closed

	t.mu.Unlock()

	if closed || pc == nil {
		return nil
	}

	return errors.Annotatef(pc.RemoveTrack(b.sender), "remove %s track", b.kind)
}

func (t *Transport) mid(rtpSender *webrtc.RTPSender) string {
	t.mu.Lock()
	pc := t.pc
	t.mu.Unlock()

	if pc == nil {
		return ""
	}

	for _, transceiver := range pc.GetTransceivers() {
		if transceiver.Sender() == rtpSender {
			return transceiver.Mid()
		}
	}

	return ""
}

func (t *Transport) State() State {
	t.mu.Lock()

	state := State{
		Opened:            t.pc != nil,
		ConnectionState:   t.connectionState.String(),
		NegotiationNeeded: t.negotiationNeeded,
		Bindings:          make(map[media.Kind]BindingState, len(t.bindings)),
	}

	bindings := make([]*binding, 0, len(t.bindings))
	for _, b := range t.bindings {
		bindings = append(bindings, b)
	}

	t.mu.Unlock()

	for _, b := range bindings {
		bs := b.state()
		bs.Mid = t.mid(b.sender)
		state.Bindings[b.kind] = bs
	}

	return state
}

// Close closes the peer connection and waits for the RTCP readers. Later
// binds fail with ErrClosed.
func (t *Transport) Close() error {
	t.mu.Lock()

	if t.closed {
		t.mu.Unlock()

		return nil
	}

	t.closed = true
	pc := t.pc
	t.bindings = map[media.Kind]*binding{}

	t.mu.Unlock()

	if !t.gate.Ready() {
		t.gate.Reject(ErrClosed)
	}

	var err error
	if pc != nil {
		err = pc.Close()
	}

	t.wg.Wait()

	t.gate.SetBound(false)

	return errors.Annotatef(err, "close peer connection")
}
