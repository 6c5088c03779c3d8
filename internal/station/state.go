// Package station holds the state shared between the background samplers
// and the request handlers.
package station

import (
	"sync"
	"time"

	"github.com/chrissnell/tipstation/internal/history"
	"github.com/chrissnell/tipstation/internal/rain"
	"github.com/chrissnell/tipstation/internal/types"
)

// State is the single consistency boundary over the tip detector, the latest
// snapshot and the rolling history. One RWMutex guards all three so a reader
// never sees a latest snapshot that is missing from history, or the reverse.
type State struct {
	mu       sync.RWMutex
	detector *rain.Detector
	history  *history.Buffer
	latest   types.Snapshot
	hasValue bool
}

// New creates the station state
func New(detector *rain.Detector, historyCapacity int) *State {
	return &State{
		detector: detector,
		history:  history.New(historyCapacity),
	}
}

// ObserveVoltage feeds one rain channel reading to the detector
func (s *State) ObserveVoltage(v types.Voltage, now time.Time) (rain.TipEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detector.Observe(v, now)
}

// TipCount returns the tips counted since startup
func (s *State) TipCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detector.TipCount()
}

// TipState returns a copy of the detector state
func (s *State) TipState() rain.TipState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detector.State()
}

// Publish makes snap the latest reading and appends it to history in one
// step
func (s *State) Publish(snap types.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = snap
	s.hasValue = true
	s.history.Push(snap)
}

// Latest returns the most recently published snapshot
func (s *State) Latest() (types.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.hasValue
}

// History returns the buffered snapshots, oldest first
func (s *State) History() []types.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.All()
}

// HistoryCapacity returns the size of the rolling buffer
func (s *State) HistoryCapacity() int {
	return s.history.Cap()
}
