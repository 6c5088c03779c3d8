package sensors

import (
	"context"

	"github.com/chrissnell/tipstation/internal/types"
)

// Ambient is an AmbientSensor behind a Guard. It initializes lazily, bounds
// every read and reinitializes after a failed read.
type Ambient struct {
	*Guard
	sensor AmbientSensor
}

// NewAmbient guards s
func NewAmbient(s AmbientSensor, opts GuardOptions) *Ambient {
	if opts.Name == "" {
		opts.Name = "ambient sensor"
	}
	return &Ambient{Guard: NewGuard(s, opts), sensor: s}
}

func (a *Ambient) Read(ctx context.Context) (types.AmbientReading, error) {
	return guardedRead(ctx, a.Guard, a.sensor.Read)
}

// Analog is an AnalogSensor behind a Guard. The rain poller and the sampler
// share one Analog so conversions on the converter never interleave.
type Analog struct {
	*Guard
	sensor AnalogSensor
}

// NewAnalog guards s
func NewAnalog(s AnalogSensor, opts GuardOptions) *Analog {
	if opts.Name == "" {
		opts.Name = "analog converter"
	}
	return &Analog{Guard: NewGuard(s, opts), sensor: s}
}

func (a *Analog) ReadVoltage(ctx context.Context, ch Channel) (types.Voltage, error) {
	return guardedRead(ctx, a.Guard, func(ctx context.Context) (types.Voltage, error) {
		return a.sensor.ReadVoltage(ctx, ch)
	})
}

// VoltageReader is the single-channel view the rain poller consumes
type VoltageReader interface {
	ReadVoltage(ctx context.Context) (types.Voltage, error)
}

// ChannelReader binds an AnalogSensor to one channel
type ChannelReader struct {
	Sensor  AnalogSensor
	Channel Channel
}

func (r ChannelReader) ReadVoltage(ctx context.Context) (types.Voltage, error) {
	return r.Sensor.ReadVoltage(ctx, r.Channel)
}
