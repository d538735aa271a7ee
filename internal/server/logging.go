package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/unsubtrack/tracker/internal/eventlog"
	"github.com/unsubtrack/tracker/internal/metrics"
)

// LoggingMiddleware emits structured start/completion entries for every
// request, tagged with the correlation id. A panic escaping the handler is
// recorded as an ERROR event through the Recorder and then re-raised so the
// outer recovery stage produces the generic 500; this stage never swallows
// the failure itself.
func LoggingMiddleware(logger *slog.Logger, recorder *eventlog.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := GetRequestID(r.Context())

			logger.Info("request started",
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)

			wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			defer func() {
				duration := time.Since(start)
				if p := recover(); p != nil {
					if recorder != nil {
						recorder.Record(r.Context(), eventlog.Event{
							Source:  "api",
							Level:   "ERROR",
							Message: "Unhandled exception while processing request",
							Details: map[string]any{
								"request_id": requestID,
								"method":     r.Method,
								"path":       r.URL.Path,
								"error":      fmt.Sprint(p),
							},
						})
					}
					logger.Error("request panicked",
						slog.String("request_id", requestID),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("error", fmt.Sprint(p)),
					)
					panic(p)
				}

				metrics.RequestsTotal.WithLabelValues(r.Method, statusClass(wrapped.status)).Inc()
				metrics.RequestDuration.Observe(float64(duration.Milliseconds()))

				logger.Info("request completed",
					slog.String("request_id", requestID),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", wrapped.status),
					slog.Duration("duration", duration),
				)
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
