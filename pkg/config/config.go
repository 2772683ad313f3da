// Package config loads the YAML configuration of the flatnuts command.
package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/df07/go-flatnuts/pkg/runner"
)

// Config is the full command configuration
type Config struct {
	Runner  runner.Config `yaml:"runner"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig controls the slog handler
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn or error
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Addr string `yaml:"addr"` // listen address; empty disables the endpoint
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Runner: runner.DefaultConfig(),
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults and validates the result
func Load(path string) (Config, error) {
	config := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return config, errors.Wrapf(err, "config: reading %s", path)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, errors.Wrapf(err, "config: parsing %s", path)
	}
	if err := config.Validate(); err != nil {
		return config, errors.Wrapf(err, "config: %s", path)
	}
	return config, nil
}

// Validate checks every section
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return c.Runner.Validate()
}

// ParseLevel maps a level name to a slog level
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(name)))); err != nil {
		return slog.LevelInfo, errors.Errorf("config: unknown log level %q", name)
	}
	return level, nil
}
