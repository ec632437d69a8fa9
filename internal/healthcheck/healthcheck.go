package healthcheck

import (
	"context"
	"log/slog"
	"time"

	"github.com/angeloszaimis/iris-server/internal/dataset"
	"github.com/angeloszaimis/iris-server/internal/metrics"
)

// Prober loads the dataset and reports whether that succeeded.
type Prober interface {
	Load(ctx context.Context) ([]dataset.Record, error)
}

// Status remembers the outcome of the previous probe so that only
// transitions are logged.
type Status struct {
	healthy bool
	known   bool
}

// Update stores healthy and reports whether it differs from the previous value.
func (s *Status) Update(healthy bool) (changed bool) {
	changed = !s.known || s.healthy != healthy
	s.healthy = healthy
	s.known = true
	return changed
}

// HealthCheck periodically loads the dataset to detect a file that has gone
// missing or become unreadable. Results are published as EventDatasetHealth;
// events is optional. It returns when ctx is done.
func HealthCheck(
	ctx context.Context,
	prober Prober,
	interval time.Duration,
	events chan<- metrics.MetricEvent,
	logger *slog.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var status Status

	for {
		select {
		case <-ctx.Done():
			logger.Info("Dataset health check stopped")
			return

		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, interval)
			records, err := prober.Load(probeCtx)
			cancel()

			healthy := err == nil
			if !status.Update(healthy) {
				continue
			}

			if healthy {
				logger.Info("Dataset is available", slog.Int("records", len(records)))
			} else {
				logger.Warn("Dataset is unavailable", slog.Any("err", err))
			}

			if events != nil {
				select {
				case events <- metrics.MetricEvent{Type: metrics.EventDatasetHealth, Timestamp: time.Now(), Healthy: healthy}:
				default:
				}
			}
		}
	}
}
