// Package eventlog records structured application events to a durable store
// with a best-effort fallback chain: store -> process log -> alert webhook.
package eventlog

import (
	"context"
	"log/slog"

	"github.com/unsubtrack/tracker/internal/metrics"
)

// Event is a single occurrence worth recording.
type Event struct {
	Source  string
	Level   string
	Message string
	Details map[string]any
	// Actor identifies who caused the event. Must never contain a raw
	// credential; callers pass a label such as "api_token".
	Actor string
}

// Store persists events durably.
type Store interface {
	InsertLog(ctx context.Context, sourceApp, logLevel, message string, details map[string]any, insertedBy string) (int64, error)
}

// Recorder writes events through the fallback chain. Record never returns an
// error and never panics; a caller can only observe whether the durable write
// happened.
type Recorder struct {
	store  Store
	logger *slog.Logger
	alerts *AlertClient // nil when no webhook is configured
}

// New creates a Recorder. alerts may be nil.
func New(store Store, logger *slog.Logger, alerts *AlertClient) *Recorder {
	return &Recorder{store: store, logger: logger, alerts: alerts}
}

// Record attempts to persist the event. On success it returns the assigned id
// and true. On any failure it falls back to process logging, then to the
// alert webhook, and returns (0, false). The event is not retried or queued;
// a failed durable write drops the durable record.
//
// The store write and the alert send run detached from the caller's
// cancellation so an aborted request does not abandon in-flight log I/O.
func (r *Recorder) Record(ctx context.Context, ev Event) (id int64, ok bool) {
	ctx = context.WithoutCancel(ctx)

	id, err := r.insert(ctx, ev)
	if err == nil {
		return id, true
	}

	metrics.EventLogFallbacks.Inc()
	r.emitDiagnostic(ev, err)
	r.sendAlert(ctx, ev, err)
	return 0, false
}

// insert isolates the store write so a panicking driver cannot escape.
func (r *Recorder) insert(ctx context.Context, ev Event) (id int64, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicError{p}
		}
	}()
	return r.store.InsertLog(ctx, ev.Source, ev.Level, ev.Message, ev.Details, ev.Actor)
}

func (r *Recorder) emitDiagnostic(ev Event, cause error) {
	defer func() { recover() }()

	attrs := []slog.Attr{
		slog.String("source_app", ev.Source),
		slog.String("log_level", ev.Level),
		slog.String("message", ev.Message),
		slog.String("cause", cause.Error()),
	}
	if ev.Actor != "" {
		attrs = append(attrs, slog.String("inserted_by", ev.Actor))
	}
	if len(ev.Details) > 0 {
		attrs = append(attrs, slog.Any("details", ev.Details))
	}
	r.logger.LogAttrs(context.Background(), slog.LevelError, "durable log write failed", attrs...)
}

func (r *Recorder) sendAlert(ctx context.Context, ev Event, cause error) {
	defer func() { recover() }()

	if r.alerts == nil {
		return
	}
	metrics.EventLogAlerts.Inc()
	if err := r.alerts.Send(ctx, ev.Level+" | "+ev.Source+" | "+ev.Message, cause); err != nil {
		r.logger.Error("logging alert webhook failed", slog.String("error", err.Error()))
	}
}

type panicError struct{ p any }

func (e panicError) Error() string {
	if err, ok := e.p.(error); ok {
		return "panic: " + err.Error()
	}
	return "panic in durable store"
}
