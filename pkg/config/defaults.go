package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/tipstation/internal/constants"
	"github.com/chrissnell/tipstation/internal/storage"
)

// ApplyDefaults fills every unset field with its documented default. Zero
// counts as unset, so rain.min_tip_interval cannot be configured to 0: every
// policy keeps a debounce window.
func (c *ConfigData) ApplyDefaults() {
	if c.Station.Name == "" {
		c.Station.Name = "tipstation"
	}
	if c.Station.Mode == "" {
		c.Station.Mode = ModePush
	}

	s := &c.Sensors
	if s.Driver == "" {
		s.Driver = "periph"
	}
	if s.BME280Address == 0 {
		s.BME280Address = 0x76
	}
	if s.ADS1115Address == 0 {
		s.ADS1115Address = 0x48
	}
	if s.UVChannel == 0 && s.RainChannel == 0 {
		s.UVChannel = 1
	}
	if s.SeaLevelPressureHPa == 0 {
		s.SeaLevelPressureHPa = constants.SeaLevelPressureHPa
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = constants.SensorReadTimeout
	}
	if s.ReinitInitial == 0 {
		s.ReinitInitial = time.Second
	}
	if s.ReinitMax == 0 {
		s.ReinitMax = 5 * time.Minute
	}

	r := &c.Rain
	if r.Policy == "" {
		r.Policy = PolicyLevel
	}
	if r.Threshold == 0 {
		r.Threshold = constants.LevelThreshold
	}
	if r.DeltaThreshold == 0 {
		r.DeltaThreshold = constants.DeltaThreshold
	}
	if r.MinTipInterval == 0 {
		r.MinTipInterval = constants.MinTipInterval
	}
	if r.PollInterval == 0 {
		r.PollInterval = constants.RainPollInterval
	}
	if r.MmPerTip == 0 {
		r.MmPerTip = constants.MmPerTip
	}

	if c.UV.BaselineVolts == 0 {
		c.UV.BaselineVolts = constants.UVBaselineVolts
	}
	if c.UV.IndexPerVolt == 0 {
		c.UV.IndexPerVolt = constants.UVIndexPerVolt
	}

	if c.Schedule.FastInterval == 0 {
		c.Schedule.FastInterval = constants.FastInterval
	}
	if c.Schedule.SlowInterval == 0 {
		c.Schedule.SlowInterval = constants.SlowInterval
	}
	if c.Schedule.HistoryCapacity == 0 {
		c.Schedule.HistoryCapacity = constants.HistoryCapacity
	}

	if c.Storage.Realtime != nil && c.Storage.Realtime.Table == "" {
		c.Storage.Realtime.Table = "weather_realtime"
	}
	if c.Storage.Archive != nil && c.Storage.Archive.Table == "" {
		c.Storage.Archive.Table = "weather_archive"
	}
	if m := c.Storage.MQTT; m != nil {
		if m.Port == 0 {
			m.Port = 1883
		}
		if m.ClientID == "" {
			m.ClientID = c.Station.Name
		}
		if m.Topic == "" {
			m.Topic = "tipstation/" + c.Station.Name + "/latest"
		}
		if m.Encoding == "" {
			m.Encoding = "json"
		}
	}

	if c.REST.ListenAddr == "" {
		c.REST.ListenAddr = "0.0.0.0"
	}
	if c.REST.Port == 0 {
		c.REST.Port = 5002
	}
}

// Validate reports the first configuration problem found
func (c *ConfigData) Validate() error {
	switch c.Station.Mode {
	case ModePush, ModePull:
	default:
		return fmt.Errorf("station.mode must be %q or %q, got %q", ModePush, ModePull, c.Station.Mode)
	}
	if c.Station.Timezone != "" {
		if _, err := time.LoadLocation(c.Station.Timezone); err != nil {
			return fmt.Errorf("station.timezone: %w", err)
		}
	}

	switch c.Sensors.Driver {
	case "periph", "simulator":
	default:
		return fmt.Errorf("sensors.driver must be periph or simulator, got %q", c.Sensors.Driver)
	}
	if c.Sensors.RainChannel == c.Sensors.UVChannel {
		return errors.New("sensors.rain_channel and sensors.uv_channel must differ")
	}
	for _, ch := range []int{c.Sensors.RainChannel, c.Sensors.UVChannel} {
		if ch < 0 || ch > 3 {
			return fmt.Errorf("ADS1115 channel %d out of range 0-3", ch)
		}
	}

	switch c.Rain.Policy {
	case PolicyLevel, PolicyDelta:
	default:
		return fmt.Errorf("rain.policy must be %q or %q, got %q", PolicyLevel, PolicyDelta, c.Rain.Policy)
	}
	if c.Rain.PollInterval <= 0 || c.Rain.MinTipInterval <= 0 {
		return errors.New("rain.poll_interval and rain.min_tip_interval must be positive")
	}
	if c.Rain.MmPerTip < 0 {
		return errors.New("rain.mm_per_tip must not be negative")
	}

	if c.Schedule.FastInterval <= 0 || c.Schedule.SlowInterval <= 0 {
		return errors.New("schedule intervals must be positive")
	}
	if c.Schedule.SlowInterval < c.Schedule.FastInterval {
		return fmt.Errorf("schedule.slow_interval (%v) must not be shorter than schedule.fast_interval (%v)",
			c.Schedule.SlowInterval, c.Schedule.FastInterval)
	}
	if c.Schedule.HistoryCapacity < 1 {
		return errors.New("schedule.history_capacity must be at least 1")
	}

	for name, sink := range map[string]*SinkData{"realtime": c.Storage.Realtime, "archive": c.Storage.Archive} {
		if sink == nil {
			continue
		}
		switch sink.Type {
		case SinkTimescaleDB, SinkSQLite:
		default:
			return fmt.Errorf("storage.%s.type %q is not supported", name, sink.Type)
		}
		if sink.ConnectionString == "" {
			return fmt.Errorf("storage.%s.connection_string is required", name)
		}
		if err := storage.ValidateTableName(sink.Table); err != nil {
			return fmt.Errorf("storage.%s.table: %w", name, err)
		}
	}
	if m := c.Storage.MQTT; m != nil {
		if m.Broker == "" {
			return errors.New("storage.mqtt.broker is required")
		}
		if m.Encoding != "json" && m.Encoding != "msgpack" {
			return fmt.Errorf("storage.mqtt.encoding must be json or msgpack, got %q", m.Encoding)
		}
	}

	if c.REST.Port < 1 || c.REST.Port > 65535 {
		return fmt.Errorf("rest.port %d out of range", c.REST.Port)
	}
	return nil
}

// Location returns the station time zone, falling back to the local zone
func (c *ConfigData) Location() *time.Location {
	if c.Station.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Station.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
