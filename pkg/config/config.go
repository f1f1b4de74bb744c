// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrInvalid is returned when a parsed value is out of range.
var ErrInvalid = errors.New("invalid config")

// Config holds all application configuration
type Config struct {
	Debug bool   `env:"DEBUG" envDefault:"false"`
	Port  string `env:"PORT" envDefault:"8080"`

	// FrontendOrigin is the only Origin allowed to open a websocket. Empty allows any.
	FrontendOrigin string   `env:"FRONTEND_PATH"`
	APIKeys        []string `env:"API_KEYS" envSeparator:","`

	TickInterval              time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`
	MaxTimeControl            int           `env:"MAX_TIME_CONTROL" envDefault:"0"`
	MatchUseArrivingAllotment bool          `env:"MATCH_USE_ARRIVING_ALLOTMENT" envDefault:"false"`
	ShutdownTimeout           time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"20s"`
}

// Load reads the optional .env files and then the process environment.
func Load(filenames ...string) (*Config, error) {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}

	cfg.APIKeys = cleanKeys(cfg.APIKeys)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks ranges the env parser cannot express.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("%w: empty port", ErrInvalid)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval %s", ErrInvalid, c.TickInterval)
	}
	if c.MaxTimeControl < 0 {
		return fmt.Errorf("%w: max time control %d", ErrInvalid, c.MaxTimeControl)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdown timeout %s", ErrInvalid, c.ShutdownTimeout)
	}
	return nil
}

func cleanKeys(keys []string) []string {
	out := keys[:0]
	for _, key := range keys {
		if key = strings.TrimSpace(key); key != "" {
			out = append(out, key)
		}
	}
	return out
}
