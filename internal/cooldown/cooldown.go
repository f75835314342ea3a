// Package cooldown debounces notifications per identity label.
package cooldown

import (
	"sync"
	"time"
)

// State maps a label to the last time a notification fired for it. It is owned
// by whoever runs the pipeline and handed to a Tracker, so tests can inspect it
// and several trackers never share hidden global state.
type State struct {
	mu   sync.Mutex
	last map[string]time.Time
}

// NewState returns an empty cooldown state.
func NewState() *State {
	return &State{last: make(map[string]time.Time)}
}

// LastFired returns when label last fired.
func (s *State) LastFired(label string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.last[label]
	return t, ok
}

// Len returns the number of labels that have fired at least once.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.last)
}

// Tracker decides whether a detection should trigger a new event.
type Tracker struct {
	window time.Duration
	state  *State
}

// NewTracker creates a tracker with the given cooldown window. A nil state gets a fresh one.
func NewTracker(window time.Duration, state *State) *Tracker {
	if state == nil {
		state = NewState()
	}
	return &Tracker{window: window, state: state}
}

// Window returns the cooldown duration.
func (t *Tracker) Window() time.Duration { return t.window }

// State returns the state the tracker mutates.
func (t *Tracker) State() *State { return t.state }

// ShouldFire reports whether label may fire at now, and if so records now as
// its last fired time. The check and the update happen under one lock.
// A label never seen before always fires.
func (t *Tracker) ShouldFire(label string, now time.Time) bool {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()

	if last, ok := t.state.last[label]; ok && now.Sub(last) < t.window {
		return false
	}
	t.state.last[label] = now
	return true
}
