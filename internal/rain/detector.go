// Package rain turns the optical rain gauge's voltage stream into a count of
// bucket tips.
package rain

import (
	"fmt"
	"math"
	"time"

	"github.com/chrissnell/tipstation/internal/types"
)

// TipState is the detector's complete mutable state. TipCount never
// decreases for the life of the process.
type TipState struct {
	Armed          bool
	LastVoltage    types.Voltage
	HasLastVoltage bool
	LastTipAt      time.Time
	TipCount       uint64
}

// TipEvent describes one registered tip
type TipEvent struct {
	At       time.Time
	Voltage  types.Voltage
	TipCount uint64
}

// EdgePolicy decides whether an observation is a tip. Implementations update
// state in place and report whether the observation registered a tip; they
// never decrement TipCount.
type EdgePolicy interface {
	Name() string
	Observe(state *TipState, v types.Voltage, now time.Time) bool
}

// LevelCrossing registers a tip on the first observation below Threshold
// after the beam was clear. The detector stays armed for the rest of the
// occlusion, so a sustained low level counts once. A falling edge inside
// MinTipInterval of the previous tip arms the detector without counting.
type LevelCrossing struct {
	Threshold      types.Voltage
	MinTipInterval time.Duration
}

func (p LevelCrossing) Name() string { return "level" }

func (p LevelCrossing) Observe(s *TipState, v types.Voltage, now time.Time) bool {
	s.LastVoltage = v
	s.HasLastVoltage = true

	if v >= p.Threshold {
		s.Armed = false
		return false
	}
	if s.Armed {
		return false
	}
	s.Armed = true
	if s.TipCount > 0 && now.Sub(s.LastTipAt) < p.MinTipInterval {
		return false
	}
	s.TipCount++
	s.LastTipAt = now
	return true
}

// DeltaDebounce registers a tip when consecutive observations differ by more
// than DeltaThreshold and more than MinTipInterval has passed since the last
// tip. The first observation only seeds the previous voltage.
type DeltaDebounce struct {
	DeltaThreshold types.Voltage
	MinTipInterval time.Duration
}

func (p DeltaDebounce) Name() string { return "delta" }

func (p DeltaDebounce) Observe(s *TipState, v types.Voltage, now time.Time) bool {
	prev, seeded := s.LastVoltage, s.HasLastVoltage
	s.LastVoltage = v
	s.HasLastVoltage = true
	if !seeded {
		return false
	}

	if math.Abs(float64(v-prev)) <= float64(p.DeltaThreshold) {
		return false
	}
	if s.TipCount > 0 && now.Sub(s.LastTipAt) <= p.MinTipInterval {
		return false
	}
	s.TipCount++
	s.LastTipAt = now
	return true
}

// NewPolicy returns the policy registered under name
func NewPolicy(name string, threshold, delta types.Voltage, minTipInterval time.Duration) (EdgePolicy, error) {
	switch name {
	case "level", "":
		return LevelCrossing{Threshold: threshold, MinTipInterval: minTipInterval}, nil
	case "delta":
		return DeltaDebounce{DeltaThreshold: delta, MinTipInterval: minTipInterval}, nil
	default:
		return nil, fmt.Errorf("unknown rain edge policy %q", name)
	}
}

// Detector applies an EdgePolicy to a stream of voltages. It is not safe for
// concurrent use; station.State serializes access to it.
type Detector struct {
	policy EdgePolicy
	state  TipState
}

// NewDetector creates a detector with zero tips
func NewDetector(policy EdgePolicy) *Detector {
	return &Detector{policy: policy}
}

// Observe feeds one voltage sample taken at now
func (d *Detector) Observe(v types.Voltage, now time.Time) (TipEvent, bool) {
	if !d.policy.Observe(&d.state, v, now) {
		return TipEvent{}, false
	}
	return TipEvent{At: now, Voltage: v, TipCount: d.state.TipCount}, true
}

// TipCount returns the number of tips registered so far
func (d *Detector) TipCount() uint64 {
	return d.state.TipCount
}

// State returns a copy of the detector state
func (d *Detector) State() TipState {
	return d.state
}

// Policy returns the active edge policy
func (d *Detector) Policy() EdgePolicy {
	return d.policy
}
