// Package common provides shared utilities for finsync
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for finsync
type Config struct {
	Environment string         `toml:"environment"`
	Server      ServerConfig   `toml:"server"`
	Storage     StorageConfig  `toml:"storage"`
	Provider    ProviderConfig `toml:"provider"`
	Sync        SyncConfig     `toml:"sync"`
	Logging     LoggingConfig  `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds the data directory for the local store.
type StorageConfig struct {
	Path string `toml:"path"`
}

// ProviderConfig holds aggregation provider client configuration.
type ProviderConfig struct {
	BaseURL     string `toml:"base_url"`
	APIKey      string `toml:"api_key"`
	RateLimit   int    `toml:"rate_limit"`   // requests per second
	PageTimeout string `toml:"page_timeout"` // bounded wait per snapshot page
}

// GetPageTimeout parses and returns the per-page timeout duration.
func (c *ProviderConfig) GetPageTimeout() time.Duration {
	d, err := time.ParseDuration(c.PageTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// SyncConfig holds sync coordinator configuration.
type SyncConfig struct {
	Interval         string `toml:"interval"`           // scheduled sync interval per account
	MaxAttempts      int    `toml:"max_attempts"`       // retry attempts for transient failures
	InitialBackoff   string `toml:"initial_backoff"`    // first retry delay
	MaxBackoff       string `toml:"max_backoff"`        // backoff cap
	FullSyncInterval string `toml:"full_sync_interval"` // cursor-reset period forcing a complete re-pull
}

// GetInterval parses the scheduled sync interval.
func (c *SyncConfig) GetInterval() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// GetInitialBackoff parses the first retry delay.
func (c *SyncConfig) GetInitialBackoff() time.Duration {
	d, err := time.ParseDuration(c.InitialBackoff)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// GetMaxBackoff parses the backoff cap.
func (c *SyncConfig) GetMaxBackoff() time.Duration {
	d, err := time.ParseDuration(c.MaxBackoff)
	if err != nil {
		return 2 * time.Minute
	}
	return d
}

// GetFullSyncInterval parses the period after which a sync discards its
// stored cursor and re-pulls the complete window.
func (c *SyncConfig) GetFullSyncInterval() time.Duration {
	d, err := time.ParseDuration(c.FullSyncInterval)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// GetMaxAttempts returns the retry attempt limit for transient failures.
func (c *SyncConfig) GetMaxAttempts() int {
	if c.MaxAttempts <= 0 {
		return 5
	}
	return c.MaxAttempts
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Path: "data/store",
		},
		Provider: ProviderConfig{
			BaseURL:     "https://api.aggregator.example.com",
			RateLimit:   5,
			PageTimeout: "30s",
		},
		Sync: SyncConfig{
			Interval:         "15m",
			MaxAttempts:      5,
			InitialBackoff:   "2s",
			MaxBackoff:       "2m",
			FullSyncInterval: "24h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FINSYNC_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("FINSYNC_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("FINSYNC_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("FINSYNC_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("FINSYNC_DATA_PATH"); path != "" {
		config.Storage.Path = path
	}

	if key := os.Getenv("FINSYNC_PROVIDER_API_KEY"); key != "" {
		config.Provider.APIKey = key
	}

	if url := os.Getenv("FINSYNC_PROVIDER_URL"); url != "" {
		config.Provider.BaseURL = url
	}

	if interval := os.Getenv("FINSYNC_SYNC_INTERVAL"); interval != "" {
		config.Sync.Interval = interval
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
