package eventlog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type stubStore struct {
	err    error
	panics bool
	nextID int64
	calls  atomic.Int64
}

func (s *stubStore) InsertLog(ctx context.Context, sourceApp, logLevel, message string, details map[string]any, insertedBy string) (int64, error) {
	s.calls.Add(1)
	if s.panics {
		panic("store exploded")
	}
	if s.err != nil {
		return 0, s.err
	}
	s.nextID++
	return s.nextID, nil
}

func testLogger(buf *strings.Builder) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func TestRecord_HealthyStore(t *testing.T) {
	var buf strings.Builder
	rec := New(&stubStore{}, testLogger(&buf), nil)

	id, ok := rec.Record(context.Background(), Event{Source: "api", Level: "INFO", Message: "hello"})
	if !ok {
		t.Fatal("Record() ok = false with healthy store")
	}
	if id != 1 {
		t.Errorf("id = %d, want 1", id)
	}
	if strings.Contains(buf.String(), "durable log write failed") {
		t.Error("diagnostic emitted despite healthy store")
	}
}

func TestRecord_StoreFailure_FallsBackWithoutError(t *testing.T) {
	var buf strings.Builder
	store := &stubStore{err: errors.New("connection refused")}
	rec := New(store, testLogger(&buf), nil)

	id, ok := rec.Record(context.Background(), Event{
		Source:  "api",
		Level:   "WARNING",
		Message: "something happened",
		Details: map[string]any{"path": "/x"},
		Actor:   "api_token",
	})
	if ok || id != 0 {
		t.Fatalf("Record() = (%d, %v), want absent sentinel", id, ok)
	}
	if store.calls.Load() != 1 {
		t.Errorf("store called %d times, want exactly 1 (no retry)", store.calls.Load())
	}

	out := buf.String()
	if !strings.Contains(out, "durable log write failed") {
		t.Error("expected structured diagnostic in process log")
	}
	if !strings.Contains(out, "connection refused") {
		t.Error("diagnostic should carry the failure cause")
	}
	if !strings.Contains(out, "something happened") {
		t.Error("diagnostic should carry the original message")
	}
}

func TestRecord_EveryStageFailing_NeverPanics(t *testing.T) {
	// Store fails, then the webhook fails too; Record must still return the
	// sentinel without raising anything.
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer webhook.Close()

	var buf strings.Builder
	rec := New(
		&stubStore{err: errors.New("disk full")},
		testLogger(&buf),
		NewAlertClient(webhook.URL, time.Second),
	)

	id, ok := rec.Record(context.Background(), Event{Source: "api", Level: "ERROR", Message: "m"})
	if ok || id != 0 {
		t.Fatalf("Record() = (%d, %v), want absent sentinel", id, ok)
	}
	if !strings.Contains(buf.String(), "logging alert webhook failed") {
		t.Error("expected webhook failure to be noted in process log")
	}
}

func TestRecord_PanickingStore_IsAbsorbed(t *testing.T) {
	var buf strings.Builder
	rec := New(&stubStore{panics: true}, testLogger(&buf), nil)

	id, ok := rec.Record(context.Background(), Event{Source: "api", Level: "INFO", Message: "m"})
	if ok || id != 0 {
		t.Fatalf("Record() = (%d, %v), want absent sentinel", id, ok)
	}
	if !strings.Contains(buf.String(), "durable log write failed") {
		t.Error("panic should be converted into the diagnostic fallback")
	}
}

// brokenHandler simulates a process-log sink that raises on every write.
type brokenHandler struct{}

func (brokenHandler) Enabled(context.Context, slog.Level) bool { return true }
func (brokenHandler) Handle(context.Context, slog.Record) error { panic("log sink unavailable") }
func (h brokenHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h brokenHandler) WithGroup(name string) slog.Handler { return h }

func TestRecord_BrokenProcessLog_AlertStillFires(t *testing.T) {
	// Store write fails, then the diagnostic stage itself fails; the alert
	// stage must still run exactly once and Record must return the sentinel.
	var hits atomic.Int64
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer webhook.Close()

	rec := New(
		&stubStore{err: errors.New("db down")},
		slog.New(brokenHandler{}),
		NewAlertClient(webhook.URL, time.Second),
	)

	id, ok := rec.Record(context.Background(), Event{Source: "api", Level: "ERROR", Message: "m"})
	if ok || id != 0 {
		t.Fatalf("Record() = (%d, %v), want absent sentinel", id, ok)
	}
	if hits.Load() != 1 {
		t.Errorf("webhook hit %d times, want exactly 1", hits.Load())
	}
}

func TestRecord_BrokenProcessLogAndWebhook_NeverPanics(t *testing.T) {
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer webhook.Close()

	rec := New(
		&stubStore{err: errors.New("db down")},
		slog.New(brokenHandler{}),
		NewAlertClient(webhook.URL, time.Second),
	)

	id, ok := rec.Record(context.Background(), Event{Source: "api", Level: "ERROR", Message: "m"})
	if ok || id != 0 {
		t.Fatalf("Record() = (%d, %v), want absent sentinel", id, ok)
	}
}

func TestRecord_AlertReceivesSummary(t *testing.T) {
	var got atomic.Value
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got.Store(string(body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer webhook.Close()

	var buf strings.Builder
	rec := New(
		&stubStore{err: errors.New("db down")},
		testLogger(&buf),
		NewAlertClient(webhook.URL, time.Second),
	)

	rec.Record(context.Background(), Event{Source: "rate_limiter", Level: "WARNING", Message: "limit hit"})

	body, _ := got.Load().(string)
	if !strings.Contains(body, "limit hit") || !strings.Contains(body, "db down") {
		t.Errorf("alert payload missing summary: %s", body)
	}
}

func TestNewAlertClient_EmptyURL(t *testing.T) {
	if c := NewAlertClient("", time.Second); c != nil {
		t.Error("expected nil client for empty URL")
	}
}
