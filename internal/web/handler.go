// Package web serves the Basic-Auth-protected browsing UI.
package web

import (
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/unsubtrack/tracker/internal/export"
	"github.com/unsubtrack/tracker/internal/storage"
)

// Handler renders the record browser and the web-side export.
type Handler struct {
	Store  *storage.Store
	Logger *slog.Logger
	tmpl   *template.Template
}

func NewHandler(store *storage.Store, logger *slog.Logger) *Handler {
	return &Handler{
		Store:  store,
		Logger: logger,
		tmpl:   template.Must(template.New("list").Parse(listPage)),
	}
}

type listView struct {
	Items    []storage.Email
	Total    int
	Limit    int
	Offset   int
	Method   string
	Search   string
	PrevPage int
	NextPage int
	HasPrev  bool
	HasNext  bool
}

// List handles GET /web/ with the same filters as the API listing.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 20
	offset := 0
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n >= 0 {
		offset = n
	}

	filter := storage.Filter{Search: q.Get("search")}
	if method := q.Get("unsub_method"); method == "direct_link" || method == "isp_level" {
		filter.Method = method
	}

	items, err := h.Store.ListEmails(r.Context(), limit, offset, filter)
	if err != nil {
		h.Logger.Error("web list failed", slog.String("error", err.Error()))
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	total, err := h.Store.CountEmails(r.Context(), filter)
	if err != nil {
		h.Logger.Error("web count failed", slog.String("error", err.Error()))
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}

	view := listView{
		Items:    items,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
		Method:   filter.Method,
		Search:   filter.Search,
		PrevPage: offset - limit,
		NextPage: offset + limit,
		HasPrev:  offset > 0,
		HasNext:  offset+limit < total,
	}
	if view.PrevPage < 0 {
		view.PrevPage = 0
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.Execute(w, view); err != nil {
		h.Logger.Error("web template failed", slog.String("error", err.Error()))
	}
}

// Export handles GET /web/export, reusing the export subsystem directly
// rather than proxying through the API surface.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = "csv"
	}

	filter := storage.Filter{Search: q.Get("search")}
	if method := q.Get("unsub_method"); method == "direct_link" || method == "isp_level" {
		filter.Method = method
	}

	var err error
	switch format {
	case "csv":
		err = export.WriteCSV(r.Context(), w, h.Store, filter)
	case "json":
		err = export.WriteJSON(r.Context(), w, h.Store, filter)
	default:
		http.Error(w, "format must be one of: csv, json", http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		h.Logger.Error("web export failed", slog.String("error", err.Error()))
	}
}

// TestProtected handles GET /web/test/protected.
func (h *Handler) TestProtected(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte("<h1>Authenticated Web UI Endpoint</h1>"))
}

const listPage = `<!DOCTYPE html>
<html>
<head><title>Unsubscribed Emails</title></head>
<body>
<h1>Unsubscribed Emails ({{.Total}})</h1>
<form method="get" action="/web/">
  <input type="text" name="search" value="{{.Search}}" placeholder="Search sender...">
  <select name="unsub_method">
    <option value="">All methods</option>
    <option value="direct_link"{{if eq .Method "direct_link"}} selected{{end}}>direct_link</option>
    <option value="isp_level"{{if eq .Method "isp_level"}} selected{{end}}>isp_level</option>
  </select>
  <button type="submit">Filter</button>
</form>
<table border="1">
  <tr><th>ID</th><th>Sender</th><th>Email</th><th>Method</th><th>Inserted</th></tr>
  {{range .Items}}
  <tr>
    <td>{{.ID}}</td>
    <td>{{.SenderName}}</td>
    <td>{{.SenderEmail}}</td>
    <td>{{.UnsubMethod}}</td>
    <td>{{.InsertedAt.Format "2006-01-02 15:04:05"}}</td>
  </tr>
  {{end}}
</table>
<p>
  {{if .HasPrev}}<a href="/web/?offset={{.PrevPage}}&search={{.Search}}&unsub_method={{.Method}}">Previous</a>{{end}}
  {{if .HasNext}}<a href="/web/?offset={{.NextPage}}&search={{.Search}}&unsub_method={{.Method}}">Next</a>{{end}}
</p>
<p><a href="/web/export?format=csv">Export CSV</a> | <a href="/web/export?format=json">Export JSON</a></p>
</body>
</html>
`
