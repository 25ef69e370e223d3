// Package monitoring provides Prometheus instrumentation: HTTP request
// metrics via Gin middleware, session lifecycle counters fed by the engine,
// and WebSocket viewer gauges.
package monitoring
