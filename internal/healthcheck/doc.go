// Package healthcheck implements periodic probing of the dataset file. It
// logs when the file becomes unavailable or recovers and reports the state to
// the metrics collector.
package healthcheck
