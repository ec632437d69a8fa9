package main

import (
	"log/slog"
	"net/http"

	"github.com/angeloszaimis/iris-server/internal/handler"
	"github.com/angeloszaimis/iris-server/internal/metrics"
	"github.com/angeloszaimis/iris-server/internal/middleware"
)

// setupRouter wraps the iris handler, which answers every path, in the
// request middleware. limiter may be nil.
func setupRouter(log *slog.Logger, irisHandler *handler.IrisHandler, limiter *middleware.LimiterStore) http.Handler {
	var rateLimit middleware.Middleware
	if limiter != nil {
		rateLimit = middleware.RateLimit(limiter, false)
	}

	return middleware.Chain(irisHandler,
		middleware.RequestID(),
		middleware.AccessLog(log),
		middleware.Recover(log, handler.WriteServerError),
		rateLimit,
	)
}

func setupMetricsRouter(collector *metrics.Collector) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/metrics", collector.PrometheusHandler())
	mux.HandleFunc("/stats", collector.Handler())
	mux.HandleFunc("/healthz", collector.HealthHandler())

	return mux
}
