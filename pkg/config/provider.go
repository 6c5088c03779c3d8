package config

import "time"

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// LoadConfig returns the complete configuration with defaults applied
	LoadConfig() (*ConfigData, error)
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Station  StationData  `yaml:"station" mapstructure:"station"`
	Sensors  SensorData   `yaml:"sensors" mapstructure:"sensors"`
	Rain     RainData     `yaml:"rain" mapstructure:"rain"`
	UV       UVData       `yaml:"uv" mapstructure:"uv"`
	Schedule ScheduleData `yaml:"schedule" mapstructure:"schedule"`
	Storage  StorageData  `yaml:"storage" mapstructure:"storage"`
	REST     RESTData     `yaml:"rest" mapstructure:"rest"`
	Log      LogData      `yaml:"log" mapstructure:"log"`
}

// Station modes
const (
	// ModePush runs the scheduler in the background; queries only read state
	ModePush = "push"
	// ModePull runs no scheduler; each latest query samples synchronously
	ModePull = "pull"
)

// StationData identifies the station and how it answers queries
type StationData struct {
	Name     string `yaml:"name" mapstructure:"name"`
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
	Mode     string `yaml:"mode" mapstructure:"mode"`
}

// SensorData holds configuration for the physical peripherals
type SensorData struct {
	// Driver is "periph" for real hardware or "simulator"
	Driver              string        `yaml:"driver" mapstructure:"driver"`
	I2CBus              string        `yaml:"i2c_bus" mapstructure:"i2c_bus"`
	BME280Address       uint16        `yaml:"bme280_address" mapstructure:"bme280_address"`
	ADS1115Address      uint16        `yaml:"ads1115_address" mapstructure:"ads1115_address"`
	RainChannel         int           `yaml:"rain_channel" mapstructure:"rain_channel"`
	UVChannel           int           `yaml:"uv_channel" mapstructure:"uv_channel"`
	SeaLevelPressureHPa float64       `yaml:"sea_level_pressure" mapstructure:"sea_level_pressure"`
	ReadTimeout         time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	ReinitInitial       time.Duration `yaml:"reinit_initial_interval" mapstructure:"reinit_initial_interval"`
	ReinitMax           time.Duration `yaml:"reinit_max_interval" mapstructure:"reinit_max_interval"`
}

// Rain edge policies
const (
	PolicyLevel = "level"
	PolicyDelta = "delta"
)

// RainData configures the tip detector
type RainData struct {
	Policy         string        `yaml:"policy" mapstructure:"policy"`
	Threshold      float64       `yaml:"threshold" mapstructure:"threshold"`
	DeltaThreshold float64       `yaml:"delta_threshold" mapstructure:"delta_threshold"`
	MinTipInterval time.Duration `yaml:"min_tip_interval" mapstructure:"min_tip_interval"`
	PollInterval   time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	MmPerTip       float64       `yaml:"mm_per_tip" mapstructure:"mm_per_tip"`
}

// UVData holds the linear UV calibration
type UVData struct {
	BaselineVolts float64 `yaml:"baseline_volts" mapstructure:"baseline_volts"`
	IndexPerVolt  float64 `yaml:"index_per_volt" mapstructure:"index_per_volt"`
}

// ScheduleData configures the fast and slow jobs
type ScheduleData struct {
	FastInterval    time.Duration `yaml:"fast_interval" mapstructure:"fast_interval"`
	SlowInterval    time.Duration `yaml:"slow_interval" mapstructure:"slow_interval"`
	HistoryCapacity int           `yaml:"history_capacity" mapstructure:"history_capacity"`
	FireOnStart     bool          `yaml:"fire_on_start" mapstructure:"fire_on_start"`
}

// StorageData holds the configuration for the durable sinks and publishers
type StorageData struct {
	Realtime *SinkData `yaml:"realtime,omitempty" mapstructure:"realtime"`
	Archive  *SinkData `yaml:"archive,omitempty" mapstructure:"archive"`
	MQTT     *MQTTData `yaml:"mqtt,omitempty" mapstructure:"mqtt"`
}

// Sink types
const (
	SinkTimescaleDB = "timescaledb"
	SinkSQLite      = "sqlite"
)

// SinkData describes one durable sink
type SinkData struct {
	Type             string `yaml:"type" mapstructure:"type"`
	ConnectionString string `yaml:"connection_string" mapstructure:"connection_string"`
	Table            string `yaml:"table" mapstructure:"table"`
}

// MQTTData configures the real-time MQTT publisher
type MQTTData struct {
	Broker   string `yaml:"broker" mapstructure:"broker"`
	Port     int    `yaml:"port" mapstructure:"port"`
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username,omitempty" mapstructure:"username"`
	Password string `yaml:"password,omitempty" mapstructure:"password"`
	Topic    string `yaml:"topic" mapstructure:"topic"`
	// Encoding is "json" or "msgpack"
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
}

// RESTData configures the query server
type RESTData struct {
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr"`
	Port       int    `yaml:"port" mapstructure:"port"`
	GRPCHealth bool   `yaml:"grpc_health" mapstructure:"grpc_health"`
}

// LogData configures logging
type LogData struct {
	Debug      bool   `yaml:"debug" mapstructure:"debug"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
}
