package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// StatusRecorder remembers the status code written through it.
type StatusRecorder struct {
	http.ResponseWriter
	StatusCode int
	Bytes      int

	written bool
}

func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, StatusCode: http.StatusOK}
}

func (r *StatusRecorder) WriteHeader(code int) {
	if !r.written {
		r.StatusCode = code
		r.written = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *StatusRecorder) Write(b []byte) (int, error) {
	r.written = true
	n, err := r.ResponseWriter.Write(b)
	r.Bytes += n
	return n, err
}

// Written reports whether the response headers have been sent.
func (r *StatusRecorder) Written() bool {
	return r.written
}

// AccessLog logs one record per completed request.
func AccessLog(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := NewStatusRecorder(w)

			next.ServeHTTP(rec, r)

			level := slog.LevelInfo
			if rec.StatusCode >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.LogAttrs(r.Context(), level, "Request completed",
				slog.String("request_id", RequestIDFrom(r.Context())),
				slog.String("from", ClientIP(r, true)),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("query", r.URL.RawQuery),
				slog.Int("status", rec.StatusCode),
				slog.Int("bytes", rec.Bytes),
				slog.Duration("duration", time.Since(start)),
				slog.String("user_agent", r.UserAgent()))
		})
	}
}
