// Package coordinator runs the user facing media operations. It acquires
// tracks, derives effect tracks and hands them to senders or parks them in
// slots until the transport can carry them.
package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/devices"
	"github.com/mediaroom/producer/producer/effects"
	"github.com/mediaroom/producer/producer/gate"
	"github.com/mediaroom/producer/producer/logger"
	"github.com/mediaroom/producer/producer/media"
	"github.com/mediaroom/producer/producer/metrics"
	"github.com/mediaroom/producer/producer/sender"
	"github.com/mediaroom/producer/producer/session"
	"github.com/mediaroom/producer/producer/settings"
)

var (
	// ErrNotAuthorized is reported when the session may not produce a kind.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrNoTrackProduced is reported when a capture returned no track of
	// the expected type.
	ErrNoTrackProduced = errors.New("no track produced")

	errDeferred = errors.New("production deferred")
	errStale    = errors.New("session closed during operation")
)

const (
	opUpdate          = "update"
	opStop            = "stop"
	opPause           = "pause"
	opResume          = "resume"
	opUpdateSettings  = "update_settings"
	opUpdatePreview   = "update_preview"
	opStopPreview     = "stop_preview"
	opProduceDeferred = "produce_deferred"
)

// Transport is the readiness view of the network transport.
type Transport interface {
	gate.Waiter
	IsBound() bool
}

type Config struct {
	// Simulcast sends webcam and extra video in multiple layers.
	Simulcast bool
	// SimulcastSharing sends screen shares in multiple layers.
	SimulcastSharing bool
}

type Params struct {
	Log       logger.Logger
	Config    Config
	Provider  media.CaptureProvider
	Devices   *devices.Directory
	Effects   *effects.Pipeline
	Transport Transport
	Binder    sender.Binder
	Settings  settings.Store
	Session   *session.State
}

// UpdateOptions are the inputs of update and preview operations.
type UpdateOptions struct {
	// NewDeviceID requests a specific capture device.
	NewDeviceID string `json:"newDeviceId,omitempty"`
	// UpdateSelection stores the device a preview ended up with as the
	// selected device.
	UpdateSelection bool `json:"updateSelection,omitempty"`
}

// kindState is everything the coordinator owns for one kind. mu serializes
// the operations of the kind and guards pending.
type kindState struct {
	mu     sync.Mutex
	sender *sender.Sender
	slot   media.Slot
	// pending is true when the slot track waits for the transport rather
	// than being a preview.
	pending bool
}

type Coordinator struct {
	log       logger.Logger
	config    Config
	provider  media.CaptureProvider
	devices   *devices.Directory
	effects   *effects.Pipeline
	transport Transport
	settings  settings.Store
	session   *session.State

	kinds map[media.Kind]*kindState

	generation uint64
}

func New(params Params) *Coordinator {
	log := params.Log.WithNamespaceAppended("coordinator")

	c := &Coordinator{
		log:       log,
		config:    params.Config,
		provider:  params.Provider,
		devices:   params.Devices,
		effects:   params.Effects,
		transport: params.Transport,
		settings:  params.Settings,
		session:   params.Session,
		kinds:     make(map[media.Kind]*kindState, len(media.Kinds)),
	}

	for _, kind := range media.Kinds {
		c.kinds[kind] = &kindState{
			sender: sender.New(params.Log, kind, params.Binder, params.Transport),
		}
	}

	return c
}

// Sender returns the sender of kind.
func (c *Coordinator) Sender(kind media.Kind) *sender.Sender {
	return c.kinds[kind].sender
}

// SenderStates returns the state of every sender.
func (c *Coordinator) SenderStates() map[media.Kind]sender.State {
	states := make(map[media.Kind]sender.State, len(c.kinds))

	for kind, ks := range c.kinds {
		states[kind] = ks.sender.State()
	}

	return states
}

// lock acquires the locks of kinds in media.Kinds order so operations that
// span several kinds cannot deadlock each other.
func (c *Coordinator) lock(kinds ...media.Kind) (unlock func()) {
	ordered := make([]*kindState, 0, len(kinds))

	for _, kind := range media.Kinds {
		for _, k := range kinds {
			if k == kind {
				ordered = append(ordered, c.kinds[kind])

				break
			}
		}
	}

	for _, ks := range ordered {
		ks.mu.Lock()
	}

	return func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			ordered[i].mu.Unlock()
		}
	}
}

func (c *Coordinator) currentGeneration() uint64 {
	return atomic.LoadUint64(&c.generation)
}

func (c *Coordinator) stale(generation uint64) bool {
	return c.currentGeneration() != generation
}

// detachedContext carries the values of the caller's context but is never
// canceled. Operations run to completion once started, the gate timeout
// bounds the only wait.
type detachedContext struct {
	parent context.Context
}

func detach(ctx context.Context) context.Context {
	if _, ok := ctx.(detachedContext); ok {
		return ctx
	}

	return detachedContext{parent: ctx}
}

func (detachedContext) Deadline() (time.Time, bool) { return time.Time{}, false }
func (detachedContext) Done() <-chan struct{}       { return nil }
func (detachedContext) Err() error                  { return nil }

func (d detachedContext) Value(key interface{}) interface{} {
	return d.parent.Value(key)
}

func outcome(err error) string {
	switch errors.Cause(err) {
	case nil:
		return metrics.OutcomeOK
	case errDeferred:
		return metrics.OutcomeDeferred
	case errStale:
		return metrics.OutcomeStale
	case ErrNotAuthorized:
		return metrics.OutcomeDenied
	default:
		return metrics.OutcomeFailed
	}
}

// begin marks the modality of kind in progress. The returned func records
// the result of the operation and clears the flag.
func (c *Coordinator) begin(kind media.Kind, op string) (done func(err error)) {
	end := c.session.BeginProgress(kind.Modality())
	start := time.Now()

	return func(err error) {
		defer end()

		result := outcome(err)

		metrics.OperationsTotal.WithLabelValues(kind.String(), op, result).Inc()
		metrics.OperationDuration.WithLabelValues(kind.String(), op).Observe(time.Since(start).Seconds())

		ctx := logger.Ctx{
			"kind":    kind,
			"op":      op,
			"outcome": result,
		}

		switch result {
		case metrics.OutcomeFailed:
			c.log.Error("Operation failed", err, ctx)
		case metrics.OutcomeDenied:
			c.log.Warn("Operation not authorized", ctx)
		case metrics.OutcomeStale:
			c.log.Info("Operation discarded", ctx)
		default:
			c.log.Debug("Operation done", ctx)
		}
	}
}

// reflect sets the flags of kind after an update like operation. A failed
// attempt to start disables and mutes the kind so it can be retried, a
// failure on an already produced kind leaves the flags alone. The muted
// flag of a produced kind follows its pause state and is kept.
func (c *Coordinator) reflect(kind media.Kind, err error, started bool) {
	switch errors.Cause(err) {
	case nil, errDeferred:
		if started {
			c.session.SetFlags(kind, true, false)
		} else {
			c.session.SetEnabled(kind, true)
		}
	case errStale, ErrNotAuthorized:
	default:
		if started {
			c.session.SetFlags(kind, false, true)
		}
	}
}

// releaseTrack stops a track that left a sender, together with its effect
// binding.
func (c *Coordinator) releaseTrack(track media.Track) {
	if track == nil {
		return
	}

	c.effects.Stop(track.ID())
	track.Stop()
}

// park moves track into the slot of kind to be produced once the transport
// is bound. It always returns a non nil error, errDeferred on success.
func (c *Coordinator) park(kind media.Kind, ks *kindState, track media.Track) error {
	if err := ks.slot.Put(track); err != nil {
		track.Stop()

		return errors.Annotatef(err, "park %s", kind)
	}

	ks.pending = true
	c.session.SetPreview(kind, track.ID())

	metrics.DeferredTotal.WithLabelValues(kind.String()).Inc()

	c.log.Info("Production deferred", logger.Ctx{
		"kind":     kind,
		"track_id": track.ID(),
	})

	return errDeferred
}

// takeParked moves the track out of the slot of kind. Ended tracks are
// dropped.
func (c *Coordinator) takeParked(kind media.Kind, ks *kindState) media.Track {
	track := ks.slot.Take()
	ks.pending = false

	if track == nil {
		return nil
	}

	c.session.SetPreview(kind, "")

	if track.Ended() {
		return nil
	}

	return track
}

// releaseParked stops whatever the slot of kind holds.
func (c *Coordinator) releaseParked(kind media.Kind, ks *kindState) {
	ks.pending = false

	if ks.slot.Release() {
		c.session.SetPreview(kind, "")
	}
}

// produce hands track to the sender of kind. A running sender gets the
// track swapped in. An idle sender is started when the transport is bound,
// otherwise the track is parked. The coordinator owns track until it
// reaches a sender or a slot.
func (c *Coordinator) produce(
	ctx context.Context,
	kind media.Kind,
	ks *kindState,
	options sender.StartOptions,
	generation uint64,
) error {
	track := options.Track

	if ks.sender.Running() {
		old, err := ks.sender.ReplaceTrack(ctx, track)
		if err != nil {
			track.Stop()

			return errors.Trace(err)
		}

		c.releaseTrack(old)

		return nil
	}

	err := c.transport.Wait(ctx)

	if c.stale(generation) {
		track.Stop()

		return errors.Trace(errStale)
	}

	switch {
	case err == nil && c.transport.IsBound():
	case err == nil, errors.Cause(err) == gate.ErrTransportUnavailable:
		return c.park(kind, ks, track)
	default:
		track.Stop()

		return errors.Annotatef(err, "wait for transport")
	}

	if err := ks.sender.Start(ctx, options); err != nil {
		track.Stop()

		return errors.Trace(err)
	}

	return nil
}

// Update starts or reconfigures kind.
func (c *Coordinator) Update(ctx context.Context, kind media.Kind, opts UpdateOptions) {
	switch kind {
	case media.KindScreen, media.KindScreenAudio:
		c.UpdateScreenSharing(ctx)
	default:
		c.updateUserMedia(ctx, kind, opts)
	}
}

// Stop stops kind. Stopping the screen stops its audio too.
func (c *Coordinator) Stop(ctx context.Context, kind media.Kind) {
	kinds := []media.Kind{kind}
	if kind == media.KindScreen {
		kinds = append(kinds, media.KindScreenAudio)
	}

	done := c.begin(kind, opStop)

	unlock := c.lock(kinds...)

	var merr *multierror.Error

	for _, k := range kinds {
		merr = multierror.Append(merr, c.stopLocked(k))
	}

	unlock()

	done(merr.ErrorOrNil())
}

// stopLocked is a no-op for an idle kind without a parked track.
func (c *Coordinator) stopLocked(kind media.Kind) error {
	ks := c.kinds[kind]

	if ks.sender.State() == sender.StateIdle && !ks.pending {
		return nil
	}

	if track := ks.sender.Track(); track != nil {
		c.effects.Stop(track.ID())
	}

	err := ks.sender.Stop()

	if ks.pending {
		c.releaseParked(kind, ks)
	}

	if kind.IsAudio() {
		c.session.SetFlags(kind, false, true)
	} else {
		c.session.SetEnabled(kind, false)
	}

	return errors.Annotatef(err, "stop %s", kind)
}

// Pause pauses a produced kind. Audio kinds are reported as muted.
func (c *Coordinator) Pause(ctx context.Context, kind media.Kind) {
	c.setPaused(kind, true)
}

// Resume resumes a paused kind.
func (c *Coordinator) Resume(ctx context.Context, kind media.Kind) {
	c.setPaused(kind, false)
}

func (c *Coordinator) setPaused(kind media.Kind, paused bool) {
	op := opResume
	if paused {
		op = opPause
	}

	done := c.begin(kind, op)

	unlock := c.lock(kind)
	err := c.setPausedLocked(kind, paused)
	unlock()

	done(err)
}

func (c *Coordinator) setPausedLocked(kind media.Kind, paused bool) error {
	ks := c.kinds[kind]

	if !ks.sender.Running() {
		c.log.Debug("Sender not running", logger.Ctx{
			"kind":   kind,
			"paused": paused,
		})

		return nil
	}

	var err error

	if paused {
		err = ks.sender.Pause()
	} else {
		err = ks.sender.Resume()
	}

	if err != nil {
		return errors.Trace(err)
	}

	if kind.IsAudio() {
		c.session.SetMuted(kind, paused)
	}

	return nil
}

// ProduceDeferred starts every kind whose track was parked while the
// transport was not bound. It does nothing until the transport is bound.
func (c *Coordinator) ProduceDeferred(ctx context.Context) {
	if !c.transport.IsBound() {
		return
	}

	ctx = detach(ctx)

	for _, kind := range media.Kinds {
		c.promote(ctx, kind)
	}
}

func (c *Coordinator) promote(ctx context.Context, kind media.Kind) {
	ks := c.kinds[kind]

	unlock := c.lock(kind)
	defer unlock()

	if !ks.pending {
		return
	}

	done := c.begin(kind, opProduceDeferred)

	err := c.promoteLocked(ctx, kind, ks)
	c.reflect(kind, err, true)

	done(err)
}

func (c *Coordinator) promoteLocked(ctx context.Context, kind media.Kind, ks *kindState) error {
	generation := c.currentGeneration()

	track := c.takeParked(kind, ks)
	if track == nil {
		return errors.Annotatef(media.ErrTrackEnded, "parked %s track", kind)
	}

	snap, err := c.settings.Get(ctx)
	if err != nil {
		track.Stop()

		return errors.Annotatef(err, "read settings")
	}

	options := c.startOptions(kind, snap, track, c.effects.Origin(track).Settings())

	return c.produce(ctx, kind, ks, options, generation)
}

// Close tears the session down. Operations that are still running discard
// their tracks instead of producing them.
func (c *Coordinator) Close() error {
	atomic.AddUint64(&c.generation, 1)

	unlock := c.lock(media.Kinds...)
	defer unlock()

	var merr *multierror.Error

	for _, kind := range media.Kinds {
		ks := c.kinds[kind]

		if track := ks.sender.Track(); track != nil {
			c.effects.Stop(track.ID())
		}

		if err := ks.sender.Stop(); err != nil {
			merr = multierror.Append(merr, errors.Annotatef(err, "stop %s", kind))
		}

		c.releaseParked(kind, ks)
		c.session.SetPreview(kind, "")
		c.session.SetFlags(kind, false, false)
	}

	c.effects.Close()
	c.devices.Reset()

	c.log.Info("Closed", nil)

	return merr.ErrorOrNil()
}
