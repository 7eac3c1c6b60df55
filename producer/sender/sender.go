// Package sender implements the per-kind production state machine.
package sender

import (
	"context"
	"sync"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/gate"
	"github.com/mediaroom/producer/producer/logger"
	"github.com/mediaroom/producer/producer/media"
	"github.com/mediaroom/producer/producer/metrics"
)

var (
	// ErrAlreadyRunning is returned by Start when the sender is not idle.
	ErrAlreadyRunning = errors.New("sender already running")
	// ErrNotRunning is returned by operations that need a running sender.
	ErrNotRunning = errors.New("sender not running")
)

// Sender binds at most one track of a single kind to the network. All
// operations are serialized, so a Stop racing with a Start runs after it.
type Sender struct {
	log    logger.Logger
	kind   media.Kind
	binder Binder
	gate   gate.Waiter

	opMu sync.Mutex

	mu      sync.RWMutex
	state   State
	track   media.Track
	binding Binding
	options StartOptions
}

func New(log logger.Logger, kind media.Kind, binder Binder, waiter gate.Waiter) *Sender {
	s := &Sender{
		log:    log.WithNamespaceAppended("sender").WithCtx(logger.Ctx{"kind": kind}),
		kind:   kind,
		binder: binder,
		gate:   waiter,
	}

	metrics.SenderState.WithLabelValues(kind.String()).Set(float64(StateIdle))

	return s
}

func (s *Sender) Kind() media.Kind {
	return s.kind
}

func (s *Sender) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

func (s *Sender) Running() bool {
	return s.State().Running()
}

func (s *Sender) Paused() bool {
	return s.State() == StatePaused
}

// Track returns the owned track, nil when idle.
func (s *Sender) Track() media.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.track
}

// Options returns the options of the last successful Start.
func (s *Sender) Options() StartOptions {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.options
}

func (s *Sender) setState(state State) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()

	metrics.SenderState.WithLabelValues(s.kind.String()).Set(float64(state))

	s.log.Trace("State changed", logger.Ctx{
		"from": prev,
		"to":   state,
	})
}

// Start binds options.Track once the transport gate resolves. On error the
// sender returns to idle and the caller keeps ownership of the track.
func (s *Sender) Start(ctx context.Context, options StartOptions) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if state := s.State(); state != StateIdle {
		return errors.Annotatef(ErrAlreadyRunning, "%s is %s", s.kind, state)
	}

	if options.Track == nil {
		return errors.NotValidf("start %s without track", s.kind)
	}

	s.setState(StateStarting)

	if err := s.gate.Wait(ctx); err != nil {
		s.setState(StateIdle)

		return errors.Annotatef(err, "start %s", s.kind)
	}

	binding, err := s.binder.Bind(ctx, s.kind, options)
	if err != nil {
		s.setState(StateIdle)

		return errors.Annotatef(err, "bind %s", s.kind)
	}

	s.mu.Lock()
	s.track = options.Track
	s.binding = binding
	s.options = options
	s.mu.Unlock()

	s.setState(StateRunning)

	s.log.Info("Started", logger.Ctx{
		"track_id":  options.Track.ID(),
		"encodings": len(options.Encodings),
	})

	return nil
}

// ReplaceTrack swaps the owned track without leaving the running state. A
// paused sender stays paused. The previous track is returned and the caller
// must release it. On error nothing changes and the caller keeps track.
func (s *Sender) ReplaceTrack(ctx context.Context, track media.Track) (media.Track, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	state := s.State()
	if !state.Running() {
		return nil, errors.Annotatef(ErrNotRunning, "replace track of %s", s.kind)
	}

	if err := s.gate.Wait(ctx); err != nil {
		return nil, errors.Annotatef(err, "replace track of %s", s.kind)
	}

	s.mu.RLock()
	binding := s.binding
	zeroOnPause := s.options.ZeroRTPOnPause
	s.mu.RUnlock()

	if state == StatePaused && zeroOnPause {
		track.SetEnabled(false)
	}

	if err := binding.ReplaceTrack(track); err != nil {
		return nil, errors.Annotatef(err, "replace track of %s", s.kind)
	}

	s.mu.Lock()
	old := s.track
	s.track = track
	s.options.Track = track
	s.mu.Unlock()

	s.log.Info("Track replaced", logger.Ctx{
		"old_track_id": old.ID(),
		"track_id":     track.ID(),
	})

	return old, nil
}

// Pause stops media from flowing. Pausing a paused sender is a no-op.
func (s *Sender) Pause() error {
	return s.setPaused(true)
}

// Resume lets media flow again. Resuming a running sender is a no-op.
func (s *Sender) Resume() error {
	return s.setPaused(false)
}

func (s *Sender) setPaused(paused bool) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	state := s.State()

	if !state.Running() {
		return errors.Annotatef(ErrNotRunning, "pause=%t %s", paused, s.kind)
	}

	if (state == StatePaused) == paused {
		return nil
	}

	s.mu.RLock()
	track := s.track
	binding := s.binding
	zeroOnPause := s.options.ZeroRTPOnPause
	s.mu.RUnlock()

	if err := binding.SetPaused(paused); err != nil {
		return errors.Annotatef(err, "pause=%t %s", paused, s.kind)
	}

	if zeroOnPause {
		track.SetEnabled(!paused)
	}

	if paused {
		s.setState(StatePaused)
	} else {
		s.setState(StateRunning)
	}

	return nil
}

// Stop unbinds and releases the owned track. Stopping an idle sender is a
// no-op. The sender is idle afterwards even when unbinding fails.
func (s *Sender) Stop() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.State() == StateIdle {
		return nil
	}

	s.setState(StateStopping)

	s.mu.Lock()
	track := s.track
	binding := s.binding
	s.track = nil
	s.binding = nil
	s.options = StartOptions{}
	s.mu.Unlock()

	err := binding.Unbind()

	track.Stop()

	s.setState(StateIdle)

	s.log.Info("Stopped", logger.Ctx{
		"track_id": track.ID(),
	})

	return errors.Annotatef(err, "unbind %s", s.kind)
}
