package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Session   SessionConfig
	Terminal  TerminalConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// SessionConfig holds session engine defaults.
type SessionConfig struct {
	DefaultTimeoutMs int `envconfig:"SESSION_DEFAULT_TIMEOUT_MS" default:"30000"`
	PollIntervalMs   int `envconfig:"SESSION_POLL_INTERVAL_MS" default:"100"`
	InitGraceMs      int `envconfig:"SESSION_INIT_GRACE_MS" default:"1000"`
	HistoryLimit     int `envconfig:"SESSION_HISTORY_LIMIT" default:"100"`
	SessionLogCap    int `envconfig:"SESSION_LOG_CAP" default:"500"`
	GlobalLogCap     int `envconfig:"GLOBAL_LOG_CAP" default:"1000"`
	MaxWaitSeconds   int `envconfig:"SESSION_MAX_WAIT_SEC" default:"300"`
}

// TerminalConfig holds default PTY dimensions.
type TerminalConfig struct {
	Cols int `envconfig:"TERM_COLS" default:"120"`
	Rows int `envconfig:"TERM_ROWS" default:"30"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Session: SessionConfig{
			DefaultTimeoutMs: 30000,
			PollIntervalMs:   100,
			InitGraceMs:      1000,
			HistoryLimit:     100,
			SessionLogCap:    500,
			GlobalLogCap:     1000,
			MaxWaitSeconds:   300,
		},
		Terminal: TerminalConfig{
			Cols: 120,
			Rows: 30,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
