package sensors

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/chrissnell/tipstation/internal/types"
)

// SimulatedAmbient produces plausible ambient readings with a slow diurnal
// drift for development without hardware
type SimulatedAmbient struct {
	SeaLevelHPa float64
	Clock       func() time.Time
}

func (s *SimulatedAmbient) Init(_ context.Context) error { return nil }

func (s *SimulatedAmbient) Close() error { return nil }

func (s *SimulatedAmbient) Read(_ context.Context) (types.AmbientReading, error) {
	now := time.Now()
	if s.Clock != nil {
		now = s.Clock()
	}
	day := float64(now.Hour()*3600+now.Minute()*60+now.Second()) / 86400.0
	swing := math.Sin(2 * math.Pi * (day - 0.25))

	pressure := 1009.0 + 3*swing + rand.NormFloat64()*0.2
	return types.AmbientReading{
		TemperatureC: 15 + 6*swing + rand.NormFloat64()*0.1,
		HumidityPct:  math.Max(0, math.Min(100, 70-15*swing+rand.NormFloat64())),
		PressureHPa:  pressure,
		AltitudeM:    Altitude(pressure, s.SeaLevelHPa),
	}, nil
}

// SimulatedAnalog emulates the converter. The rain channel idles near 4 V and
// dips below 0.2 V for TipDuration once every TipEvery; every other channel
// reads around 1.2 V, which maps to a small positive UV index.
type SimulatedAnalog struct {
	RainChannel Channel
	TipEvery    time.Duration
	TipDuration time.Duration
	Clock       func() time.Time

	mu    sync.Mutex
	start time.Time
}

func (s *SimulatedAnalog) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.start.IsZero() {
		s.start = s.now()
	}
	return nil
}

func (s *SimulatedAnalog) Close() error { return nil }

func (s *SimulatedAnalog) ReadVoltage(_ context.Context, ch Channel) (types.Voltage, error) {
	if ch != s.RainChannel {
		return types.Voltage(1.2 + rand.NormFloat64()*0.02), nil
	}

	s.mu.Lock()
	elapsed := s.now().Sub(s.start)
	s.mu.Unlock()

	every, dur := s.TipEvery, s.TipDuration
	if every <= 0 {
		every = 30 * time.Second
	}
	if dur <= 0 {
		dur = 200 * time.Millisecond
	}
	if elapsed%every < dur {
		return types.Voltage(0.1 + rand.Float64()*0.05), nil
	}
	return types.Voltage(4.0 + rand.NormFloat64()*0.03), nil
}

func (s *SimulatedAnalog) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}
