package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chrissnell/tipstation/internal/log"
	"github.com/chrissnell/tipstation/pkg/config"
)

var (
	cfgFile    string
	cfgBackend string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:          "tipstation",
	Short:        "Weather station with an optical tipping-bucket rain gauge",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&cfgBackend, "config-backend", "yaml",
		"Configuration backend: 'yaml' for a YAML file, 'viper' for a YAML/TOML file with TIPSTATION_* environment overrides")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Turn on debugging output")
}

// setup loads the configuration and initializes logging from it
func setup() (*config.ConfigData, error) {
	cfg, err := loadConfig(cfgFile, cfgBackend)
	if err != nil {
		return nil, err
	}

	if err := log.Init(log.Options{
		Debug:      debug || cfg.Log.Debug,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfig(cfgFile, cfgBackend string) (*config.ConfigData, error) {
	var provider config.ConfigProvider

	switch cfgBackend {
	case "yaml":
		filename, _ := filepath.Abs(cfgFile)
		provider = config.NewYAMLProvider(filename)
	case "viper":
		provider = config.NewViperProvider(cfgFile)
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'viper'", cfgBackend)
	}

	cfg, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the --config flag? Run with -h for help: %w", err)
	}
	return cfg, nil
}
