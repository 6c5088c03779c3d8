package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// TIPSTATION_STORAGE_ARCHIVE_CONNECTION_STRING
const EnvPrefix = "TIPSTATION"

// ViperProvider implements ConfigProvider on top of viper so that a config
// file (YAML or TOML) can be overridden from the environment. Credentials for
// the sinks are usually supplied this way.
type ViperProvider struct {
	v *viper.Viper
}

// NewViperProvider creates a provider reading filename, which may be empty
// when the whole configuration comes from the environment
func NewViperProvider(filename string) *ViperProvider {
	v := viper.New()
	if filename != "" {
		v.SetConfigFile(filename)
	} else {
		v.SetConfigName("tipstation")
		v.AddConfigPath("/etc/tipstation")
		v.AddConfigPath("$HOME/.tipstation")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about, so every
	// leaf key is bound explicitly for Unmarshal to see env-only values.
	for _, key := range knownKeys {
		_ = v.BindEnv(key)
	}
	return &ViperProvider{v: v}
}

// LoadConfig reads the config file (if any), applies environment overrides
// and returns the validated configuration
func (p *ViperProvider) LoadConfig() (*ConfigData, error) {
	if err := p.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &ConfigData{}
	if err := p.v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// ConfigFileUsed returns the file viper loaded, if any
func (p *ViperProvider) ConfigFileUsed() string {
	return p.v.ConfigFileUsed()
}

var knownKeys = []string{
	"station.name", "station.timezone", "station.mode",
	"sensors.driver", "sensors.i2c_bus", "sensors.bme280_address", "sensors.ads1115_address",
	"sensors.rain_channel", "sensors.uv_channel", "sensors.sea_level_pressure",
	"sensors.read_timeout", "sensors.reinit_initial_interval", "sensors.reinit_max_interval",
	"rain.policy", "rain.threshold", "rain.delta_threshold", "rain.min_tip_interval",
	"rain.poll_interval", "rain.mm_per_tip",
	"uv.baseline_volts", "uv.index_per_volt",
	"schedule.fast_interval", "schedule.slow_interval", "schedule.history_capacity", "schedule.fire_on_start",
	"storage.realtime.type", "storage.realtime.connection_string", "storage.realtime.table",
	"storage.archive.type", "storage.archive.connection_string", "storage.archive.table",
	"storage.mqtt.broker", "storage.mqtt.port", "storage.mqtt.client_id", "storage.mqtt.username",
	"storage.mqtt.password", "storage.mqtt.topic", "storage.mqtt.encoding",
	"rest.listen_addr", "rest.port", "rest.grpc_health",
	"log.debug", "log.file", "log.max_size_mb", "log.max_backups",
}
