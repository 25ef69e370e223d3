// Package config provides 12-factor configuration management for the
// session service.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Session: session engine defaults (timeouts, polling, history bounds)
//   - Terminal: default PTY dimensions
//   - Logging: log level, output format, and ring buffer caps
//   - RateLimit: per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST
//   - SESSION_DEFAULT_TIMEOUT_MS, SESSION_POLL_INTERVAL_MS, SESSION_INIT_GRACE_MS
//   - SESSION_HISTORY_LIMIT, SESSION_LOG_CAP, GLOBAL_LOG_CAP, SESSION_MAX_WAIT_SEC
//   - TERM_COLS, TERM_ROWS
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
