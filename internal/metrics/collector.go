package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type EventType string

const (
	EventRequestReceived   EventType = "request_received"
	EventDatasetLoaded     EventType = "dataset_loaded"
	EventDatasetFailed     EventType = "dataset_failed"
	EventResponseCompleted EventType = "response_completed"
	EventDatasetHealth     EventType = "dataset_health"
)

type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Duration   time.Duration
	StatusCode int
	Records    int
	Flowers    int
	Healthy    bool
}

// Collector drains MetricEvents on its own goroutine into the in-process
// Metrics and the Prometheus registry.
type Collector struct {
	eventCh  chan MetricEvent
	metrics  *Metrics
	exporter *exporter
	logger   *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh:  make(chan MetricEvent, bufferSize),
		metrics:  NewMetrics(),
		exporter: newExporter(),
		logger:   logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Registry exposes the Prometheus registry the collector reports into.
func (c *Collector) Registry() *prometheus.Registry {
	return c.exporter.registry
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventRequestReceived:
		c.metrics.IncrementRequests()

	case EventDatasetLoaded:
		c.metrics.RecordLoad(event.Duration, event.Records)
		c.exporter.loadDuration.WithLabelValues("ok").Observe(event.Duration.Seconds())
		c.exporter.records.Set(float64(event.Records))

	case EventDatasetFailed:
		c.metrics.RecordLoadFailure()
		c.exporter.loadDuration.WithLabelValues("error").Observe(event.Duration.Seconds())

	case EventResponseCompleted:
		c.metrics.RecordResponse(event.Duration, event.StatusCode, event.Flowers)
		c.exporter.requests.WithLabelValues(statusLabel(event.StatusCode)).Inc()
		c.exporter.latency.Observe(event.Duration.Seconds())
		c.exporter.flowers.Add(float64(event.Flowers))

	case EventDatasetHealth:
		c.metrics.UpdateHealthStatus(event.Healthy)
		if event.Healthy {
			c.exporter.healthy.Set(1)
		} else {
			c.exporter.healthy.Set(0)
		}
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
