// Package middleware provides the HTTP middleware stack for the session
// gateway: CORS with configurable origins and per-IP token bucket rate
// limiting with idle-client eviction.
package middleware
