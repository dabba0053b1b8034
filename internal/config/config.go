// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the configuration of `nianio run`. CLI flags override it.
type Config struct {
	// HTTPAddr is the listen address of the game's HTTP worker.
	HTTPAddr string `env:"NIANIO_HTTP_ADDR" envDefault:":8000"`

	// TimerDelay is how long a player has for each move.
	TimerDelay time.Duration `env:"NIANIO_TIMER_DELAY" envDefault:"10s"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"NIANIO_LOG_LEVEL" envDefault:"info"`

	// LogFormat is text or json.
	LogFormat string `env:"NIANIO_LOG_FORMAT" envDefault:"text"`

	// Journal is the path of the SQLite journal. Empty disables it.
	Journal string `env:"NIANIO_JOURNAL"`

	// MetricsAddr is the listen address of /metrics. Empty disables it.
	MetricsAddr string `env:"NIANIO_METRICS_ADDR"`
}

// Load reads Config from the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads Config from environ instead of the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http address is required")
	}
	if c.TimerDelay <= 0 {
		return fmt.Errorf("timer delay must be positive, got %s", c.TimerDelay)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", c.LogFormat)
	}
	return nil
}
