package managers

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chrissnell/tipstation/internal/sensors"
	"github.com/chrissnell/tipstation/pkg/config"
)

// SensorManager owns the station peripherals. The rain poller and the
// sampler share Analog.
type SensorManager struct {
	Ambient *sensors.Ambient
	Analog  *sensors.Analog

	RainChannel sensors.Channel
	UVChannel   sensors.Channel

	board     *sensors.Board
	closeOnce sync.Once
	closeErr  error
}

// NewSensorManager builds guarded peripherals from cfg. Nothing touches the
// hardware until the first read.
func NewSensorManager(cfg *config.SensorData, logger *zap.SugaredLogger) (*SensorManager, error) {
	m := &SensorManager{
		RainChannel: sensors.Channel(cfg.RainChannel),
		UVChannel:   sensors.Channel(cfg.UVChannel),
	}

	var ambient sensors.AmbientSensor
	var analog sensors.AnalogSensor

	switch cfg.Driver {
	case "periph":
		m.board = sensors.NewBoard(cfg.I2CBus)
		ambient = sensors.NewBME280(m.board, cfg.BME280Address, cfg.SeaLevelPressureHPa)
		analog = sensors.NewADS1115(m.board, cfg.ADS1115Address)
		logger.Infof("using I2C bus %q (BME280 at %#x, ADS1115 at %#x)", cfg.I2CBus, cfg.BME280Address, cfg.ADS1115Address)
	case "simulator":
		ambient = &sensors.SimulatedAmbient{SeaLevelHPa: cfg.SeaLevelPressureHPa}
		analog = &sensors.SimulatedAnalog{RainChannel: m.RainChannel}
		logger.Info("using simulated sensors")
	default:
		return nil, fmt.Errorf("unknown sensor driver %q", cfg.Driver)
	}

	opts := func(name string) sensors.GuardOptions {
		return sensors.GuardOptions{
			Name:            name,
			Timeout:         cfg.ReadTimeout,
			InitialInterval: cfg.ReinitInitial,
			MaxInterval:     cfg.ReinitMax,
		}
	}
	m.Ambient = sensors.NewAmbient(ambient, opts("bme280"))
	m.Analog = sensors.NewAnalog(analog, opts("ads1115"))
	return m, nil
}

// RainReader is the rain channel of the shared converter
func (m *SensorManager) RainReader() sensors.VoltageReader {
	return sensors.ChannelReader{Sensor: m.Analog, Channel: m.RainChannel}
}

// Guards lists the guarded peripherals
func (m *SensorManager) Guards() []*sensors.Guard {
	return []*sensors.Guard{m.Ambient.Guard, m.Analog.Guard}
}

// Close releases the peripherals and the bus once
func (m *SensorManager) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = multierr.Combine(m.Ambient.Close(), m.Analog.Close())
		if m.board != nil {
			m.closeErr = multierr.Append(m.closeErr, m.board.Close())
		}
	})
	return m.closeErr
}
