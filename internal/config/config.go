// Package config provides configuration loading for utilsim.
// Settings come from defaults, an optional YAML file, then environment
// variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config contains all utilsim settings.
type Config struct {
	// Simulation controls the tick loop.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Storage locates the decision log database.
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// API configures the HTTP server.
	API APIConfig `json:"api" yaml:"api"`

	// Logging sets operational log verbosity.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// SimulationConfig controls how fast and how far each tick moves.
type SimulationConfig struct {
	// DeltaTime is the simulated duration of one tick.
	DeltaTime float64 `json:"dt" yaml:"dt"`

	// Interval is the wall-clock time between ticks at speed 1.
	Interval time.Duration `json:"interval" yaml:"interval"`

	// Speed multiplies the tick rate. 0 starts paused.
	Speed float64 `json:"speed" yaml:"speed"`

	// Seed makes spawning and jitter reproducible. 0 uses crypto/rand jitter.
	Seed int64 `json:"seed" yaml:"seed"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	// Path is the database file. Empty disables persistence.
	Path string `json:"path" yaml:"path"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Port int `json:"port" yaml:"port"`

	// AdminKey guards the mutating endpoints. Supports ${VAR} syntax.
	// Empty disables them.
	AdminKey string `json:"admin_key,omitempty" yaml:"admin_key,omitempty"`
}

// LoggingConfig configures operational logging.
type LoggingConfig struct {
	// Level is "info" (default), "debug" or "trace".
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			DeltaTime: 0.1,
			Interval:  100 * time.Millisecond,
			Speed:     1.0,
		},
		Storage: StorageConfig{
			Path: "data/utilsim.db",
		},
		API: APIConfig{
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration: defaults, then path if it is non-empty,
// then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		cfg = fileCfg
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.API.AdminKey = expandEnvVars(cfg.API.AdminKey)
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.Simulation.DeltaTime <= 0 {
		errs = append(errs, fmt.Errorf("simulation.dt must be positive, got %g", c.Simulation.DeltaTime))
	}
	if c.Simulation.Interval <= 0 {
		errs = append(errs, fmt.Errorf("simulation.interval must be positive, got %v", c.Simulation.Interval))
	}
	if c.Simulation.Speed < 0 {
		errs = append(errs, fmt.Errorf("simulation.speed must be non-negative, got %g", c.Simulation.Speed))
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port out of range: %d", c.API.Port))
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level))
	}
	return errors.Join(errs...)
}

// applyEnvOverrides applies UTILSIM_* environment variables.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("UTILSIM_DB"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("UTILSIM_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("UTILSIM_PORT: %w", err)
		}
		cfg.API.Port = n
	}
	if v := os.Getenv("UTILSIM_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("UTILSIM_SEED: %w", err)
		}
		cfg.Simulation.Seed = n
	}
	if v := os.Getenv("UTILSIM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("UTILSIM_ADMIN_KEY"); v != "" {
		cfg.API.AdminKey = v
	}
	return nil
}

// expandEnvVars expands ${VAR} patterns in s.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
