// Package httpserver wraps net/http.Server with listen address validation,
// configurable timeouts and bounded graceful shutdown.
package httpserver
