// Package middleware provides the net/http middleware wrapped around the iris
// handler: request IDs, access logging, panic recovery and optional per-client
// rate limiting.
package middleware
