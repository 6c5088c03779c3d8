// Package sensors defines the peripheral capabilities the station samples
// and provides periph.io and simulated implementations of them.
package sensors

import (
	"context"
	"errors"
	"fmt"

	"github.com/chrissnell/tipstation/internal/types"
)

// Channel is a logical input of the analog-to-digital converter
type Channel int

// ErrUninitialized is returned by a capability used before Init succeeded
var ErrUninitialized = errors.New("sensor not initialized")

// Device is the lifecycle shared by every capability. Close must be safe to
// call on a device that was never initialized.
type Device interface {
	Init(ctx context.Context) error
	Close() error
}

// AmbientSensor reads temperature, humidity, pressure and altitude
type AmbientSensor interface {
	Device
	Read(ctx context.Context) (types.AmbientReading, error)
}

// AnalogSensor reads instantaneous voltages from numbered channels
type AnalogSensor interface {
	Device
	ReadVoltage(ctx context.Context, ch Channel) (types.Voltage, error)
}

// InitError means a peripheral handle could not be acquired
type InitError struct {
	Device string
	Err    error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initializing %s: %v", e.Device, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// ReadError means a single read from an initialized peripheral failed
type ReadError struct {
	Device string
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading %s: %v", e.Device, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
