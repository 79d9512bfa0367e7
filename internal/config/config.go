// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Validate before use; failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Data sources for the heatmap read path.
const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the local store: memory or sqlite.
	StoreDriver string `koanf:"store_driver"`
	SQLitePath  string `koanf:"sqlite_path"`

	// DataSource selects where the heatmap reads employees and allocations
	// from: the local store, or the resource and project services over HTTP.
	DataSource         string `koanf:"data_source"`
	ResourceServiceURL string `koanf:"resource_service_url"`
	ProjectServiceURL  string `koanf:"project_service_url"`
	RemoteTimeoutMS    int    `koanf:"remote_timeout_ms"`

	// DefaultMonths is the heatmap width when the request names none;
	// MaxMonths caps it.
	DefaultMonths int `koanf:"default_months"`
	MaxMonths     int `koanf:"max_months"`

	// Concurrency bounds per-employee aggregation goroutines.
	Concurrency int `koanf:"concurrency"`

	// IdempotencySize sets how many assignment creation keys are remembered.
	IdempotencySize int `koanf:"idempotency_size"`

	// DegradeOnUnavailable serves an empty, flagged heatmap instead of 503
	// when a collaborator is down.
	DegradeOnUnavailable bool `koanf:"degrade_on_unavailable"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":9080",
		StoreDriver:     StoreMemory,
		SQLitePath:      "occupancy.db",
		DataSource:      SourceLocal,
		RemoteTimeoutMS: 5000,
		DefaultMonths:   6,
		MaxMonths:       24,
		Concurrency:     runtime.NumCPU(),
		IdempotencySize: 10_000,
	}
}

// RemoteTimeout returns RemoteTimeoutMS as a duration.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.RemoteTimeoutMS) * time.Millisecond
}

// Validate checks field ranges and cross-field requirements.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StoreDriver != StoreMemory && c.StoreDriver != StoreSQLite:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	case c.StoreDriver == StoreSQLite && c.SQLitePath == "":
		return fmt.Errorf("%w: sqlite_path is required for the sqlite driver", ErrInvalidConfig)
	case c.DataSource != SourceLocal && c.DataSource != SourceRemote:
		return fmt.Errorf("%w: unknown data_source %q", ErrInvalidConfig, c.DataSource)
	case c.DataSource == SourceRemote && (c.ResourceServiceURL == "" || c.ProjectServiceURL == ""):
		return fmt.Errorf("%w: remote data_source needs resource_service_url and project_service_url", ErrInvalidConfig)
	case c.RemoteTimeoutMS <= 0:
		return fmt.Errorf("%w: remote_timeout_ms must be positive", ErrInvalidConfig)
	case c.DefaultMonths <= 0:
		return fmt.Errorf("%w: default_months must be positive", ErrInvalidConfig)
	case c.MaxMonths < c.DefaultMonths:
		return fmt.Errorf("%w: max_months must be at least default_months", ErrInvalidConfig)
	case c.Concurrency <= 0:
		return fmt.Errorf("%w: concurrency must be positive", ErrInvalidConfig)
	case c.IdempotencySize <= 0:
		return fmt.Errorf("%w: idempotency_size must be positive", ErrInvalidConfig)
	}
	return nil
}
