package media

import (
	"sync"

	"github.com/juju/errors"
)

// Slot holds at most one Track that has been captured but is not owned by a
// sender. Moving a track out of the slot is done with Take, which clears the
// slot in the same critical section.
type Slot struct {
	mu    sync.Mutex
	track Track
}

// Put stores track in the slot. Putting the track the slot already holds
// is a no-op. The caller keeps ownership when an error is returned.
func (s *Slot) Put(track Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.track != nil && s.track.ID() != track.ID() {
		return errors.Annotatef(ErrSlotOccupied, "holding %s, refusing %s", s.track.ID(), track.ID())
	}

	s.track = track

	return nil
}

// Take moves the track out of the slot. It returns nil when the slot is
// empty.
func (s *Slot) Take() Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	track := s.track
	s.track = nil

	return track
}

// Peek returns the held track without transferring ownership.
func (s *Slot) Peek() Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.track
}

// Release stops and drops the held track. It returns false when the slot
// was empty.
func (s *Slot) Release() bool {
	track := s.Take()
	if track == nil {
		return false
	}

	track.Stop()

	return true
}
