// Package api implements the token-protected JSON endpoints for
// unsubscribed email records, exports, and the durable log.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/unsubtrack/tracker/internal/eventlog"
	"github.com/unsubtrack/tracker/internal/export"
	"github.com/unsubtrack/tracker/internal/storage"
)

// Handler carries the dependencies shared by the API endpoints.
type Handler struct {
	Store    *storage.Store
	Recorder *eventlog.Recorder
	Logger   *slog.Logger
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

type createEmailRequest struct {
	SenderName  string `json:"sender_name"`
	SenderEmail string `json:"sender_email"`
	UnsubMethod string `json:"unsub_method"`
}

func (req createEmailRequest) validate() error {
	if req.SenderName == "" {
		return errors.New("sender_name is required")
	}
	if req.SenderEmail == "" {
		return errors.New("sender_email is required")
	}
	if req.UnsubMethod != "direct_link" && req.UnsubMethod != "isp_level" {
		return errors.New("unsub_method must be one of: direct_link, isp_level")
	}
	return nil
}

// CreateEmail handles POST /api/v1/unsubscribed_emails/.
func (h *Handler) CreateEmail(w http.ResponseWriter, r *http.Request) {
	var req createEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := h.Store.InsertEmail(r.Context(), req.SenderName, req.SenderEmail, req.UnsubMethod)
	if err != nil {
		h.Logger.Error("create unsubscribed email failed", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}

	h.Recorder.Record(r.Context(), eventlog.Event{
		Source:  "api",
		Level:   "INFO",
		Message: "Unsubscribed email record created.",
		Details: map[string]any{
			"created_id":   created.ID,
			"sender_email": created.SenderEmail,
		},
		// The caller authenticated with the shared token; record a label,
		// never the token itself.
		Actor: "api_token",
	})

	writeJSON(w, http.StatusCreated, created)
}

// queryFilter parses the shared filter parameters (unsub_method, search,
// date_from, date_to) used by listing and export.
func queryFilter(r *http.Request) (storage.Filter, error) {
	q := r.URL.Query()
	var f storage.Filter

	if method := q.Get("unsub_method"); method != "" {
		if method != "direct_link" && method != "isp_level" {
			return f, errors.New("unsub_method must be one of: direct_link, isp_level")
		}
		f.Method = method
	}
	if search := q.Get("search"); search != "" {
		if len(search) > 100 {
			return f, errors.New("search must be at most 100 characters")
		}
		f.Search = search
	}
	for name, dst := range map[string]**time.Time{"date_from": &f.DateFrom, "date_to": &f.DateTo} {
		if raw := q.Get(name); raw != "" {
			t, err := parseTimestamp(raw)
			if err != nil {
				return f, fmt.Errorf("%s must be an ISO 8601 timestamp", name)
			}
			*dst = &t
		}
	}
	return f, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", raw)
}

func intQuery(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", name, min, max)
	}
	return n, nil
}

// ListEmails handles GET /api/v1/unsubscribed_emails/.
func (h *Handler) ListEmails(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 10, 1, 100)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	offset, err := intQuery(r, "offset", 0, 0, 1<<31-1)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	filter, err := queryFilter(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	items, err := h.Store.ListEmails(r.Context(), limit, offset, filter)
	if err != nil {
		h.Logger.Error("list unsubscribed emails failed", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	total, err := h.Store.CountEmails(r.Context(), filter)
	if err != nil {
		h.Logger.Error("count unsubscribed emails failed", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}

	if items == nil {
		items = []storage.Email{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// ExportEmails handles GET /api/v1/unsubscribed_emails/export.
func (h *Handler) ExportEmails(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		writeError(w, http.StatusUnprocessableEntity, "format must be one of: csv, json")
		return
	}
	filter, err := queryFilter(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	switch format {
	case "csv":
		err = export.WriteCSV(r.Context(), w, h.Store, filter)
	case "json":
		err = export.WriteJSON(r.Context(), w, h.Store, filter)
	}
	if err != nil {
		// Headers are already on the wire; all that is left is to log it.
		h.Logger.Error("export failed", slog.String("error", err.Error()))
	}
}

type createLogRequest struct {
	SourceApp string         `json:"source_app"`
	LogLevel  string         `json:"log_level"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details_json"`
}

// CreateLog handles POST /api/v1/logs. The write goes through the Recorder's
// fallback chain, so this endpoint reports success even when the durable
// store is down; log_id is null in that case.
func (h *Handler) CreateLog(w http.ResponseWriter, r *http.Request) {
	var req createLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}
	if req.SourceApp == "" || req.LogLevel == "" || req.Message == "" {
		writeError(w, http.StatusUnprocessableEntity, "source_app, log_level and message are required")
		return
	}

	id, ok := h.Recorder.Record(r.Context(), eventlog.Event{
		Source:  req.SourceApp,
		Level:   req.LogLevel,
		Message: req.Message,
		Details: req.Details,
	})

	body := map[string]any{"status": "logged", "log_id": nil}
	if ok {
		body["log_id"] = id
	}
	writeJSON(w, http.StatusCreated, body)
}

// ListLogs handles GET /api/v1/logs.
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 100, 1, 1000)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	offset, err := intQuery(r, "offset", 0, 0, 1<<31-1)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	logs, total, err := h.Store.ListLogs(r.Context(), limit, offset,
		r.URL.Query().Get("source_app"), r.URL.Query().Get("log_level"))
	if err != nil {
		h.Logger.Error("list logs failed", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}

	if logs == nil {
		logs = []storage.LogRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":  total,
		"limit":  limit,
		"offset": offset,
		"data":   logs,
	})
}

// TestProtected handles GET /api/v1/test/protected.
func (h *Handler) TestProtected(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "authenticated",
		"endpoint_type": "api",
	})
}

// Health handles GET /api/v1/health (public). A failed database ping is the
// DownstreamFailure case: recorded as CRITICAL, surfaced as 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		h.Recorder.Record(r.Context(), eventlog.Event{
			Source:  "api",
			Level:   "CRITICAL",
			Message: "Health check failed: database unreachable",
			Details: map[string]any{"error": err.Error()},
		})
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "database": "connected"})
}

// Root handles GET / (public).
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "unsubscribed-emails-tracker",
	})
}
