// Package session holds the flags a user interface observes: what may be
// produced, what is enabled or muted and which modalities are busy.
package session

import (
	"sync"

	"github.com/mediaroom/producer/producer/media"
)

// Capabilities gate whether a kind may be produced at all.
type Capabilities struct {
	Mic    bool `json:"mic" yaml:"mic"`
	Webcam bool `json:"webcam" yaml:"webcam"`
	Screen bool `json:"screen" yaml:"screen"`
}

// Allows reports whether kind may be produced. Extra video shares the
// webcam capability and screen audio the screen capability.
func (c Capabilities) Allows(kind media.Kind) bool {
	switch kind {
	case media.KindMic:
		return c.Mic
	case media.KindWebcam, media.KindExtraVideo:
		return c.Webcam
	case media.KindScreen, media.KindScreenAudio:
		return c.Screen
	default:
		return false
	}
}

// KindState are the user visible flags of one kind.
type KindState struct {
	Enabled bool `json:"enabled"`
	Muted   bool `json:"muted"`
}

// Snapshot is a copy of the whole session state.
type Snapshot struct {
	Capabilities Capabilities             `json:"capabilities"`
	Kinds        map[media.Kind]KindState `json:"kinds"`
	InProgress   map[media.Modality]bool  `json:"inProgress"`
	Previews     map[media.Kind]string    `json:"previews"`
}

// State is safe for concurrent use.
type State struct {
	mu         sync.RWMutex
	caps       Capabilities
	kinds      map[media.Kind]KindState
	inProgress map[media.Modality]int
	previews   map[media.Kind]string

	subsMu  sync.Mutex
	subs    map[uint64]chan Snapshot
	nextSub uint64
}

func New(caps Capabilities) *State {
	return &State{
		caps:       caps,
		kinds:      map[media.Kind]KindState{},
		inProgress: map[media.Modality]int{},
		previews:   map[media.Kind]string{},
		subs:       map[uint64]chan Snapshot{},
	}
}

func (s *State) Capabilities() Capabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.caps
}

func (s *State) SetCapabilities(caps Capabilities) {
	s.mu.Lock()
	s.caps = caps
	s.mu.Unlock()

	s.notify()
}

func (s *State) Kind(kind media.Kind) KindState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.kinds[kind]
}

func (s *State) update(kind media.Kind, fn func(*KindState)) {
	s.mu.Lock()

	ks := s.kinds[kind]
	before := ks
	fn(&ks)
	s.kinds[kind] = ks

	s.mu.Unlock()

	if ks != before {
		s.notify()
	}
}

func (s *State) SetEnabled(kind media.Kind, enabled bool) {
	s.update(kind, func(ks *KindState) { ks.Enabled = enabled })
}

func (s *State) SetMuted(kind media.Kind, muted bool) {
	s.update(kind, func(ks *KindState) { ks.Muted = muted })
}

// SetFlags sets both flags of kind in one change.
func (s *State) SetFlags(kind media.Kind, enabled, muted bool) {
	s.update(kind, func(ks *KindState) {
		ks.Enabled = enabled
		ks.Muted = muted
	})
}

// SetPreview records the id of the track parked for kind. An empty id
// clears it.
func (s *State) SetPreview(kind media.Kind, trackID string) {
	s.mu.Lock()

	changed := s.previews[kind] != trackID

	if trackID == "" {
		delete(s.previews, kind)
	} else {
		s.previews[kind] = trackID
	}

	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// Preview returns the id of the track parked for kind.
func (s *State) Preview(kind media.Kind) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.previews[kind]
}

// InProgress reports whether an operation of modality is running.
func (s *State) InProgress(modality media.Modality) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.inProgress[modality] > 0
}

// BeginProgress marks modality busy until the returned func is called.
// Overlapping operations are counted, the flag clears with the last one.
func (s *State) BeginProgress(modality media.Modality) (end func()) {
	s.mu.Lock()
	s.inProgress[modality]++
	s.mu.Unlock()

	s.notify()

	var once sync.Once

	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.inProgress[modality]--
			s.mu.Unlock()

			s.notify()
		})
	}
}

// Snapshot copies the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Capabilities: s.caps,
		Kinds:        make(map[media.Kind]KindState, len(media.Kinds)),
		InProgress:   make(map[media.Modality]bool, len(media.Modalities)),
		Previews:     make(map[media.Kind]string, len(s.previews)),
	}

	for kind, id := range s.previews {
		snap.Previews[kind] = id
	}

	for _, kind := range media.Kinds {
		snap.Kinds[kind] = s.kinds[kind]
	}

	for _, modality := range media.Modalities {
		snap.InProgress[modality] = s.inProgress[modality] > 0
	}

	return snap
}

// Subscribe returns a channel that receives the latest Snapshot after every
// change. Slow readers only see the most recent one.
func (s *State) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subsMu.Unlock()

	var once sync.Once

	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

func (s *State) notify() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	if len(s.subs) == 0 {
		return
	}

	snap := s.Snapshot()

	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}

		select {
		case ch <- snap:
		default:
		}
	}
}
