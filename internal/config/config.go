package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/me/gosched/internal/logging"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "GOSCHED_"

// ServerConfig holds configuration for the gosched server.
type ServerConfig struct {
	Addr      string `yaml:"addr" env:"ADDR"`             // Listen address (default ":8080")
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`   // Log level: debug, info, warn, error
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"` // Log format: text, json
	DBPath    string `yaml:"db_path" env:"DB_PATH"`       // SQLite database path; empty means ~/.gosched/gosched.db, ":memory:" for testing

	MaxConcurrent int           `yaml:"max_concurrent" env:"MAX_CONCURRENT"`
	PollInterval  time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	ErrorBackoff  time.Duration `yaml:"error_backoff" env:"ERROR_BACKOFF"`
	Quantum       int           `yaml:"quantum" env:"QUANTUM"`     // Round robin slice, seconds
	TimeUnit      time.Duration `yaml:"time_unit" env:"TIME_UNIT"` // Wall-clock length of one second of work

	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT"` // Mutating requests per second; 0 disables
	RateBurst int     `yaml:"rate_burst" env:"RATE_BURST"`
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:          ":8080",
		LogLevel:      "info",
		LogFormat:     "text",
		DBPath:        "gosched.db",
		MaxConcurrent: 3,
		PollInterval:  time.Second,
		ErrorBackoff:  5 * time.Second,
		Quantum:       10,
		TimeUnit:      time.Second,
		RateLimit:     20,
		RateBurst:     40,
	}
}

// Load returns the defaults overlaid by the YAML file at path (if path is
// not empty) and then by GOSCHED_* environment variables.
func Load(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid field.
func (c ServerConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if _, err := logging.ParseLevelStrict(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if !logging.ValidFormat(c.LogFormat) {
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	if c.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("max_concurrent must be >= 1, got %d", c.MaxConcurrent))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval))
	}
	if c.ErrorBackoff <= 0 {
		errs = append(errs, fmt.Errorf("error_backoff must be positive, got %s", c.ErrorBackoff))
	}
	if c.Quantum < 1 {
		errs = append(errs, fmt.Errorf("quantum must be >= 1, got %d", c.Quantum))
	}
	if c.TimeUnit <= 0 {
		errs = append(errs, fmt.Errorf("time_unit must be positive, got %s", c.TimeUnit))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate_limit must be >= 0, got %g", c.RateLimit))
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("rate_burst must be >= 1 when rate_limit is set, got %d", c.RateBurst))
	}
	return errors.Join(errs...)
}
