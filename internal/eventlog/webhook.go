package eventlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AlertClient posts logging-failure alerts to an external webhook. The
// payload is a Discord-compatible {"content": "..."} JSON body.
type AlertClient struct {
	url    string
	client *http.Client
}

// NewAlertClient returns a client for the given webhook URL, or nil when the
// URL is empty so callers can pass the result straight to the Recorder.
func NewAlertClient(url string, timeout time.Duration) *AlertClient {
	if url == "" {
		return nil
	}
	return &AlertClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type alertPayload struct {
	Content string `json:"content"`
}

// Send posts a summary of the failed log write. It does not retry.
func (c *AlertClient) Send(ctx context.Context, originalMessage string, cause error) error {
	content := fmt.Sprintf(
		"Logging system alert: failed to write log to database.\nOriginal message: %s\nError: %v",
		originalMessage, cause)

	body, err := json.Marshal(alertPayload{Content: content})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("alert request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}
	return nil
}
