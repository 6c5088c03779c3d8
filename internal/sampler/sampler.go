// Package sampler assembles composite station snapshots from the sensors.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/chrissnell/tipstation/internal/sensors"
	"github.com/chrissnell/tipstation/internal/types"
)

// SensorError reports that a snapshot could not be built because a
// peripheral was unavailable. Err is a *sensors.InitError or
// *sensors.ReadError.
type SensorError struct {
	Op  string
	Err error
}

func (e *SensorError) Error() string {
	return fmt.Sprintf("sampling %s: %v", e.Op, e.Err)
}

func (e *SensorError) Unwrap() error { return e.Err }

// Unavailable reports whether the error came from a peripheral that could
// not be initialized, as opposed to a single failed read
func (e *SensorError) Unavailable() bool {
	var initErr *sensors.InitError
	return errors.As(e.Err, &initErr)
}

// TipCounter supplies the current rain tip count
type TipCounter interface {
	TipCount() uint64
}

// Calibration converts raw channel values into reported quantities
type Calibration struct {
	UVBaselineVolts float64
	UVIndexPerVolt  float64
	MmPerTip        float64
}

// UVIndex maps a UV sensor voltage to a non-negative index
func (c Calibration) UVIndex(v types.Voltage) float64 {
	return math.Max(0, (float64(v)-c.UVBaselineVolts)*c.UVIndexPerVolt)
}

// Precipitation converts a tip count to millimetres of rain
func (c Calibration) Precipitation(tips uint64) float64 {
	return float64(tips) * c.MmPerTip
}

// Sampler reads the ambient sensor and the UV channel and combines them with
// the rain total. The sensors it is given are expected to reinitialize
// themselves on use, as sensors.Ambient and sensors.Analog do.
type Sampler struct {
	ambient   sensors.AmbientSensor
	analog    sensors.AnalogSensor
	uvChannel sensors.Channel
	tips      TipCounter
	cal       Calibration
	now       func() time.Time
}

// New creates a sampler
func New(ambient sensors.AmbientSensor, analog sensors.AnalogSensor, uvChannel sensors.Channel, tips TipCounter, cal Calibration) *Sampler {
	return &Sampler{
		ambient:   ambient,
		analog:    analog,
		uvChannel: uvChannel,
		tips:      tips,
		cal:       cal,
		now:       time.Now,
	}
}

// Sample takes one reading. On failure it returns a *SensorError and no
// snapshot; values are never fabricated.
func (s *Sampler) Sample(ctx context.Context) (types.Snapshot, error) {
	ambient, err := s.ambient.Read(ctx)
	if err != nil {
		return types.Snapshot{}, &SensorError{Op: "ambient", Err: err}
	}
	uv, err := s.analog.ReadVoltage(ctx, s.uvChannel)
	if err != nil {
		return types.Snapshot{}, &SensorError{Op: "uv", Err: err}
	}

	return types.NewSnapshot(
		s.now(),
		ambient,
		s.cal.UVIndex(uv),
		s.cal.Precipitation(s.tips.TipCount()),
	), nil
}
