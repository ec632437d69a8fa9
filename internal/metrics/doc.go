// Package metrics collects request and dataset statistics for the iris server.
//
// Handlers publish MetricEvents on a buffered channel without blocking; a
// single collector goroutine folds them into:
//   - Request counts and HTTP status code distribution
//   - Response times with percentile calculations (P50, P95, P99)
//   - Dataset load counts, failures, durations and record counts
//   - Dataset health as reported by the periodic probe
//
// The same events feed a private Prometheus registry. Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.EventChannel() <- metrics.MetricEvent{
//		Type:       metrics.EventResponseCompleted,
//		Duration:   3 * time.Millisecond,
//		StatusCode: 200,
//		Flowers:    150,
//	}
//
//	snapshot := collector.Snapshot()
//
// On shutdown the collector drains pending events before returning.
package metrics
