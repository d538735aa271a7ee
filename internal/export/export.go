// Package export streams unsubscribed email records as CSV or JSON
// attachments.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/unsubtrack/tracker/internal/storage"
)

// Source is the streaming iterator the export consumes.
type Source interface {
	IterEmails(ctx context.Context, f storage.Filter, fn func(storage.Email) error) error
}

// WriteCSV streams the filtered records as a CSV attachment.
func WriteCSV(ctx context.Context, w http.ResponseWriter, src Source, f storage.Filter) error {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="unsubscribed_emails_export.csv"`)

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "sender_name", "sender_email", "unsub_method", "inserted_at"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	err := src.IterEmails(ctx, f, func(e storage.Email) error {
		return cw.Write([]string{
			strconv.FormatInt(e.ID, 10),
			e.SenderName,
			e.SenderEmail,
			e.UnsubMethod,
			e.InsertedAt.Format(time.RFC3339),
		})
	})
	if err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON streams the filtered records as a JSON array attachment.
func WriteJSON(ctx context.Context, w http.ResponseWriter, src Source, f storage.Filter) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="unsubscribed_emails_export.json"`)

	enc := json.NewEncoder(w)
	first := true
	if _, err := w.Write([]byte("[")); err != nil {
		return err
	}
	err := src.IterEmails(ctx, f, func(e storage.Email) error {
		if !first {
			if _, err := w.Write([]byte(",")); err != nil {
				return err
			}
		}
		first = false
		return enc.Encode(e)
	})
	if err != nil {
		return err
	}
	_, err = w.Write([]byte("]"))
	return err
}
