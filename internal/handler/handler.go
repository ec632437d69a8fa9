package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/angeloszaimis/iris-server/internal/dataset"
	"github.com/angeloszaimis/iris-server/internal/iris"
	"github.com/angeloszaimis/iris-server/internal/metrics"
	"github.com/angeloszaimis/iris-server/internal/middleware"
)

const (
	ContentTypeXML  = "application/xml"
	ContentTypeText = "text/plain"

	serverErrorPrefix = "Server error: "
)

// Source provides the records for a single request.
type Source interface {
	Load(ctx context.Context) ([]dataset.Record, error)
}

type IrisHandler struct {
	logger           *slog.Logger
	source           Source
	metricsCollector *metrics.Collector
}

func NewIrisHandler(logger *slog.Logger, source Source, collector *metrics.Collector) *IrisHandler {
	return &IrisHandler{
		logger:           logger,
		source:           source,
		metricsCollector: collector,
	}
}

// ServeHTTP answers every path and method with either the XML document or a
// plain text server error.
func (h *IrisHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := h.logger.With(slog.String("request_id", middleware.RequestIDFrom(r.Context())))

	h.emitEvent(metrics.MetricEvent{
		Type:      metrics.EventRequestReceived,
		Timestamp: start,
	})

	q := iris.ParseQuery(r.URL.Query())

	body, flowers, err := h.render(r.Context(), q, log)
	if err != nil {
		log.Error("Failed to serve irises",
			slog.String("path", r.URL.Path),
			slog.String("err", err.Error()),
			slog.Any("cause", errors.Unwrap(err)))
		WriteServerError(w, err)
		h.complete(start, http.StatusInternalServerError, 0)
		return
	}

	log.Debug("Serving irises",
		slog.Bool("variety", q.VarietyRequested),
		slog.Int("flowers", flowers))

	w.Header().Set("Content-Type", ContentTypeXML)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Warn("Failed to write response", slog.Any("err", err))
	}
	h.complete(start, http.StatusOK, flowers)
}

func (h *IrisHandler) render(ctx context.Context, q iris.Query, log *slog.Logger) ([]byte, int, error) {
	loadStart := time.Now()
	records, err := h.source.Load(ctx)
	if err != nil {
		h.emitEvent(metrics.MetricEvent{
			Type:      metrics.EventDatasetFailed,
			Timestamp: time.Now(),
			Duration:  time.Since(loadStart),
		})
		return nil, 0, err
	}
	h.emitEvent(metrics.MetricEvent{
		Type:      metrics.EventDatasetLoaded,
		Timestamp: time.Now(),
		Duration:  time.Since(loadStart),
		Records:   len(records),
	})

	if min, ok := q.Threshold(); ok {
		log.Debug("Filtering records", slog.Float64("min_petal_length", min), slog.Int("records", len(records)))
	}

	flowers := iris.Select(records, q)
	body, err := iris.Encode(flowers)
	if err != nil {
		return nil, 0, err
	}

	return body, len(flowers), nil
}

func (h *IrisHandler) complete(start time.Time, status, flowers int) {
	h.emitEvent(metrics.MetricEvent{
		Type:       metrics.EventResponseCompleted,
		Timestamp:  time.Now(),
		Duration:   time.Since(start),
		StatusCode: status,
		Flowers:    flowers,
	})
}

func (h *IrisHandler) emitEvent(event metrics.MetricEvent) {
	if h.metricsCollector == nil {
		return
	}

	select {
	case h.metricsCollector.EventChannel() <- event:
	default:
	}
}

// WriteServerError writes the plain text 500 response for err.
func WriteServerError(w http.ResponseWriter, err error) {
	body := serverErrorPrefix + err.Error()

	w.Header().Set("Content-Type", ContentTypeText)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(body))
}
