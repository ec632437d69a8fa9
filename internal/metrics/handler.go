package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the in-process snapshot as JSON.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := c.metrics.Snapshot()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

// PrometheusHandler serves the collector's registry in the Prometheus text format.
func (c *Collector) PrometheusHandler() http.Handler {
	return promhttp.HandlerFor(c.exporter.registry, promhttp.HandlerOpts{})
}

// HealthHandler answers 200 while the dataset is readable and 503 once a
// probe has failed.
func (c *Collector) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		healthy := c.metrics.Snapshot().Dataset.Healthy
		if healthy != nil && !*healthy {
			http.Error(w, "dataset unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
