package test

import (
	"context"
	"sync"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/media"
	"github.com/mediaroom/producer/producer/sender"
)

// Binder is an in-memory sender.Binder that records every call per kind.
type Binder struct {
	mu sync.Mutex

	bindErr error

	binds    map[media.Kind][]sender.StartOptions
	replaces map[media.Kind]int
	unbinds  map[media.Kind]int
	current  map[media.Kind]*Binding
}

var _ sender.Binder = &Binder{}

func NewBinder() *Binder {
	return &Binder{
		binds:    map[media.Kind][]sender.StartOptions{},
		replaces: map[media.Kind]int{},
		unbinds:  map[media.Kind]int{},
		current:  map[media.Kind]*Binding{},
	}
}

// FailBind makes subsequent Bind calls fail with err.
func (b *Binder) FailBind(err error) {
	b.mu.Lock()
	b.bindErr = err
	b.mu.Unlock()
}

func (b *Binder) Bind(ctx context.Context, kind media.Kind, options sender.StartOptions) (sender.Binding, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.binds[kind] = append(b.binds[kind], options)

	if b.bindErr != nil {
		return nil, errors.Trace(b.bindErr)
	}

	binding := &Binding{
		binder: b,
		kind:   kind,
		track:  options.Track,
	}

	b.current[kind] = binding

	return binding, nil
}

// BindCalls returns the options of every Bind call for kind.
func (b *Binder) BindCalls(kind media.Kind) []sender.StartOptions {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]sender.StartOptions(nil), b.binds[kind]...)
}

func (b *Binder) ReplaceCalls(kind media.Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.replaces[kind]
}

func (b *Binder) UnbindCalls(kind media.Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.unbinds[kind]
}

// Binding returns the last binding created for kind.
func (b *Binder) Binding(kind media.Kind) *Binding {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.current[kind]
}

// Binding records the state the network side would see.
type Binding struct {
	binder *Binder
	kind   media.Kind

	track   media.Track
	paused  bool
	unbound bool
}

var _ sender.Binding = &Binding{}

func (b *Binding) ReplaceTrack(track media.Track) error {
	b.binder.mu.Lock()
	defer b.binder.mu.Unlock()

	b.binder.replaces[b.kind]++
	b.track = track

	return nil
}

func (b *Binding) SetPaused(paused bool) error {
	b.binder.mu.Lock()
	defer b.binder.mu.Unlock()

	b.paused = paused

	return nil
}

func (b *Binding) Unbind() error {
	b.binder.mu.Lock()
	defer b.binder.mu.Unlock()

	b.binder.unbinds[b.kind]++
	b.unbound = true

	return nil
}

func (b *Binding) Track() media.Track {
	b.binder.mu.Lock()
	defer b.binder.mu.Unlock()

	return b.track
}

func (b *Binding) Paused() bool {
	b.binder.mu.Lock()
	defer b.binder.mu.Unlock()

	return b.paused
}

func (b *Binding) Unbound() bool {
	b.binder.mu.Lock()
	defer b.binder.mu.Unlock()

	return b.unbound
}
