package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "iris"

type exporter struct {
	registry     *prometheus.Registry
	requests     *prometheus.CounterVec
	latency      prometheus.Histogram
	loadDuration *prometheus.HistogramVec
	records      prometheus.Gauge
	flowers      prometheus.Counter
	healthy      prometheus.Gauge
}

func newExporter() *exporter {
	e := &exporter{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Requests served, by status code."},
			[]string{"status"},
		),
		latency: prometheus.NewHistogram(
			prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds", Help: "Time to build and write a response.", Buckets: prometheus.DefBuckets},
		),
		loadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: namespace, Name: "dataset_load_duration_seconds", Help: "Time to read and decode the dataset, by outcome.", Buckets: prometheus.DefBuckets},
			[]string{"outcome"},
		),
		records: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "dataset_records", Help: "Records in the most recently loaded dataset."},
		),
		flowers: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "flowers_served_total", Help: "Flower elements written to clients."},
		),
		healthy: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "dataset_healthy", Help: "1 when the last dataset probe succeeded."},
		),
	}

	e.registry.MustRegister(
		e.requests, e.latency, e.loadDuration, e.records, e.flowers, e.healthy,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return e
}

func statusLabel(code int) string {
	return strconv.Itoa(code)
}
