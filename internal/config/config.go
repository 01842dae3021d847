// Package config holds runtime settings for the dashboard. Defaults are
// overridden by CCTOP_* environment variables and then by command-line
// flags.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full dashboard configuration.
type Config struct {
	// DB is an explicit event database path. Empty means discover.
	DB string `envconfig:"DB"`

	// RefreshInterval bounds how often a snapshot is rebuilt when the
	// filesystem watcher is quiet.
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL"`

	// SessionLimit caps the sessions view.
	SessionLimit int `envconfig:"SESSION_LIMIT"`

	// StaleAfter is how long an open prompt may sit untouched before the
	// maintenance sweep closes it out.
	StaleAfter time.Duration `envconfig:"STALE_AFTER"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		RefreshInterval: 2 * time.Second,
		SessionLimit:    50,
		StaleAfter:      12 * time.Hour,
	}
}

// Load returns the defaults overridden by CCTOP_* environment variables.
func Load() (Config, error) {
	cfg := Default()
	if err := envconfig.Process("CCTOP", &cfg); err != nil {
		return cfg, fmt.Errorf("read environment: %w", err)
	}
	if cfg.RefreshInterval < 250*time.Millisecond {
		cfg.RefreshInterval = 250 * time.Millisecond
	}
	if cfg.SessionLimit <= 0 {
		cfg.SessionLimit = 50
	}
	return cfg, nil
}
