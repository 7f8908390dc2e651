// Package config loads the docsync demo configuration from a YAML file and
// DOCSYNC_ prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoggingConfig controls the demo logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Prefix string `mapstructure:"prefix"`
}

// MetricsConfig controls metrics collection.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// ContentConfig controls the server-side content store.
type ContentConfig struct {
	SnapshotCacheSize int `mapstructure:"snapshot_cache_size"`
}

// SimulationConfig controls the two-session demo run.
type SimulationConfig struct {
	DocumentID      string `mapstructure:"document_id"`
	EditsPerSession int    `mapstructure:"edits_per_session"`
	InitialListSize int    `mapstructure:"initial_list_size"`
}

// Config holds the complete demo configuration.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Content    ContentConfig    `mapstructure:"content"`
	Simulation SimulationConfig `mapstructure:"simulation"`
}

// Load reads the configuration file named by DOCSYNC_CONFIG_FILE (default
// configs/config.yaml) and applies DOCSYNC_ environment overrides. A missing
// file is not an error; defaults apply.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	configFile := os.Getenv("DOCSYNC_CONFIG_FILE")
	if configFile == "" {
		configFile = "configs/config.yaml"
	}
	v.SetConfigFile(configFile)

	v.SetEnvPrefix("DOCSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if _, statErr := os.Stat(configFile); statErr == nil {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.prefix", "docsync")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", "docsync")
	v.SetDefault("content.snapshot_cache_size", 1024)
	v.SetDefault("simulation.document_id", "demo-doc")
	v.SetDefault("simulation.edits_per_session", 3)
	v.SetDefault("simulation.initial_list_size", 10)
}
