package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recover turns a panic in next into a call to onPanic so the client still
// receives a complete error response. If next had already started the
// response, the panic is only logged.
func Recover(logger *slog.Logger, onPanic func(http.ResponseWriter, error)) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := NewStatusRecorder(w)

			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				err, ok := v.(error)
				if !ok {
					err = fmt.Errorf("%v", v)
				}
				logger.Error("Recovered from panic",
					slog.String("request_id", RequestIDFrom(r.Context())),
					slog.String("err", err.Error()),
					slog.Bool("response_started", rec.Written()),
					slog.String("stack", string(debug.Stack())))
				if rec.Written() {
					return
				}
				onPanic(rec, err)
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
