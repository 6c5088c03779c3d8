package sensors

import (
	"context"
	"fmt"
	"math"
	"sync"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"github.com/chrissnell/tipstation/internal/types"
)

// Board owns the host drivers and the I2C bus shared by every peripheral.
// The bus is opened on first use and released once by Close.
type Board struct {
	busName string

	mu     sync.Mutex
	bus    i2c.BusCloser
	closed bool
}

// NewBoard returns a board for the named I2C bus; an empty name selects the
// first bus the host registers, usually /dev/i2c-1
func NewBoard(busName string) *Board {
	return &Board{busName: busName}
}

func (b *Board) open() (i2c.Bus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("i2c bus %q already released", b.busName)
	}
	if b.bus != nil {
		return b.bus, nil
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host.Init: %w", err)
	}
	bus, err := i2creg.Open(b.busName)
	if err != nil {
		return nil, fmt.Errorf("i2creg.Open(%q): %w", b.busName, err)
	}
	b.bus = bus
	return bus, nil
}

// Close releases the bus. Calling it on a board whose bus was never opened,
// or calling it twice, is a no-op.
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.bus == nil {
		return nil
	}
	err := b.bus.Close()
	b.bus = nil
	return err
}

// BME280 reads the ambient sensor through periph's bmxx80 driver
type BME280 struct {
	board       *Board
	addr        uint16
	seaLevelHPa float64
	dev         *bmxx80.Dev
}

// NewBME280 creates an uninitialized BME280 at addr on board
func NewBME280(board *Board, addr uint16, seaLevelHPa float64) *BME280 {
	return &BME280{board: board, addr: addr, seaLevelHPa: seaLevelHPa}
}

// Init acquires the device, halting any handle left from an earlier attempt
func (s *BME280) Init(_ context.Context) error {
	s.halt()
	bus, err := s.board.open()
	if err != nil {
		return err
	}
	dev, err := bmxx80.NewI2C(bus, s.addr, &bmxx80.DefaultOpts)
	if err != nil {
		return fmt.Errorf("bmxx80.NewI2C(0x%02x): %w", s.addr, err)
	}
	s.dev = dev
	return nil
}

// Read takes one forced measurement
func (s *BME280) Read(_ context.Context) (types.AmbientReading, error) {
	if s.dev == nil {
		return types.AmbientReading{}, ErrUninitialized
	}
	var env physic.Env
	if err := s.dev.Sense(&env); err != nil {
		return types.AmbientReading{}, err
	}

	// Humidity is fixed point at 0.00001 %rH and pressure is in nano Pascal.
	pressure := float64(env.Pressure) / float64(100*physic.Pascal)
	return types.AmbientReading{
		TemperatureC: env.Temperature.Celsius(),
		HumidityPct:  float64(env.Humidity) / float64(physic.PercentRH),
		PressureHPa:  pressure,
		AltitudeM:    Altitude(pressure, s.seaLevelHPa),
	}, nil
}

// Close halts the device if it was acquired
func (s *BME280) Close() error {
	return s.halt()
}

func (s *BME280) halt() error {
	if s.dev == nil {
		return nil
	}
	err := s.dev.Halt()
	s.dev = nil
	return err
}

// Altitude estimates metres above sea level from station pressure using the
// international barometric formula
func Altitude(pressureHPa, seaLevelHPa float64) float64 {
	if pressureHPa <= 0 || seaLevelHPa <= 0 {
		return 0
	}
	return 44330.0 * (1.0 - math.Pow(pressureHPa/seaLevelHPa, 0.1903))
}

// ADS1115 reads single-ended voltages through periph's ads1x15 driver.
// Pins are created per channel on first use.
type ADS1115 struct {
	board *Board
	addr  uint16
	dev   *ads1x15.Dev
	pins  map[Channel]ads1x15.PinADC
}

// NewADS1115 creates an uninitialized converter at addr on board
func NewADS1115(board *Board, addr uint16) *ADS1115 {
	return &ADS1115{board: board, addr: addr}
}

var singleEnded = map[Channel]ads1x15.Channel{
	0: ads1x15.Channel0,
	1: ads1x15.Channel1,
	2: ads1x15.Channel2,
	3: ads1x15.Channel3,
}

// Init acquires the converter, halting any handles left from an earlier
// attempt
func (a *ADS1115) Init(_ context.Context) error {
	a.halt()
	bus, err := a.board.open()
	if err != nil {
		return err
	}
	opts := ads1x15.DefaultOpts
	opts.I2cAddress = a.addr
	dev, err := ads1x15.NewADS1115(bus, &opts)
	if err != nil {
		return fmt.Errorf("ads1x15.NewADS1115(0x%02x): %w", a.addr, err)
	}
	a.dev = dev
	a.pins = make(map[Channel]ads1x15.PinADC)
	return nil
}

// ReadVoltage performs a single-shot conversion on ch
func (a *ADS1115) ReadVoltage(_ context.Context, ch Channel) (types.Voltage, error) {
	if a.dev == nil {
		return 0, ErrUninitialized
	}
	pin, err := a.pin(ch)
	if err != nil {
		return 0, err
	}
	var sample analog.Sample
	if sample, err = pin.Read(); err != nil {
		return 0, err
	}
	return types.Voltage(float64(sample.V) / float64(physic.Volt)), nil
}

func (a *ADS1115) pin(ch Channel) (ads1x15.PinADC, error) {
	if p, ok := a.pins[ch]; ok {
		return p, nil
	}
	c, ok := singleEnded[ch]
	if !ok {
		return nil, fmt.Errorf("ADS1115 channel %d out of range 0-3", ch)
	}
	p, err := a.dev.PinForChannel(c, 4096*physic.MilliVolt, 128*physic.Hertz, ads1x15.BestQuality)
	if err != nil {
		return nil, fmt.Errorf("ADS1115 channel %d: %w", ch, err)
	}
	a.pins[ch] = p
	return p, nil
}

// Close halts every pin and the converter if they were acquired
func (a *ADS1115) Close() error {
	return a.halt()
}

func (a *ADS1115) halt() error {
	var firstErr error
	for ch, p := range a.pins {
		if err := p.Halt(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(a.pins, ch)
	}
	if a.dev != nil {
		if err := a.dev.Halt(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.dev = nil
	}
	return firstErr
}
