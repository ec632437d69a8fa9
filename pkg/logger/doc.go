// Package logger builds the structured slog loggers used across the server.
// The environment decides between JSON and text output and every record is
// tagged with the service name and environment.
package logger
