// Package config defines service configuration and how it is loaded.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	Model ModelConfig `koanf:"model"`
	Store StoreConfig `koanf:"store"`

	// QueueSize bounds how many HTTP analyses may wait for the worker.
	QueueSize int `koanf:"queue_size"`

	// MaxRecordsLimit caps GET /records?limit.
	MaxRecordsLimit int `koanf:"max_records_limit"`
}

// ModelConfig locates the classifier artifact.
type ModelConfig struct {
	// Path is the artifact directory holding config.json, vocab.txt and weights.json.
	Path string `koanf:"path"`

	// MaxSequenceLength truncates inputs below the model's own limit. 0 keeps the model limit.
	MaxSequenceLength int `koanf:"max_sequence_length"`
}

// StoreConfig selects and locates the analysis log.
type StoreConfig struct {
	// Driver is csv or sqlite.
	Driver string `koanf:"driver"`

	Path string `koanf:"path"`

	// LockTimeoutMS bounds the wait for the cross-process write lock.
	LockTimeoutMS int `koanf:"lock_timeout_ms"`
}

// LockTimeout returns LockTimeoutMS as a duration.
func (s StoreConfig) LockTimeout() time.Duration {
	return time.Duration(s.LockTimeoutMS) * time.Millisecond
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Addr:      ":8080",
		Model: ModelConfig{
			Path:              "model",
			MaxSequenceLength: 512,
		},
		Store: StoreConfig{
			Driver:        "csv",
			Path:          "predictions.csv",
			LockTimeoutMS: 5000,
		},
		QueueSize:       64,
		MaxRecordsLimit: 1000,
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.Model.Path) == "":
		return fmt.Errorf("%w: model.path must not be empty", ErrInvalidConfig)
	case c.Model.MaxSequenceLength < 0:
		return fmt.Errorf("%w: model.max_sequence_length must not be negative", ErrInvalidConfig)
	case strings.TrimSpace(c.Store.Path) == "":
		return fmt.Errorf("%w: store.path must not be empty", ErrInvalidConfig)
	case c.Store.LockTimeoutMS <= 0:
		return fmt.Errorf("%w: store.lock_timeout_ms must be positive", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.MaxRecordsLimit <= 0:
		return fmt.Errorf("%w: max_records_limit must be positive", ErrInvalidConfig)
	}

	switch strings.ToLower(c.Store.Driver) {
	case "csv", "sqlite":
	default:
		return fmt.Errorf("%w: store.driver %q is not csv or sqlite", ErrInvalidConfig, c.Store.Driver)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q is not text or json", ErrInvalidConfig, c.LogFormat)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	return nil
}
