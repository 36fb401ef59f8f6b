package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"stormcrier/internal/shared"
)

// isValidURL checks if a string is a valid HTTP/HTTPS URL.
func isValidURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Webhook posts failure notices to a Slack-compatible incoming webhook.
type Webhook struct {
	url        string
	httpClient *http.Client
}

// NewWebhook creates a webhook notifier for the given URL.
func NewWebhook(url string) (*Webhook, error) {
	if !isValidURL(url) {
		return nil, fmt.Errorf("invalid webhook URL: %q (must be a valid HTTP/HTTPS URL)", url)
	}
	return &Webhook{
		url: url,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Name returns the channel name.
func (w *Webhook) Name() string {
	return "webhook"
}

// Notify posts the failure notice as a Slack message payload.
func (w *Webhook) Notify(ctx context.Context, f Failure) error {
	text := fmt.Sprintf(":warning: %s gave up after exhausting all attempts at %s\nLast error: %v",
		f.Job, f.At.Format(time.RFC3339), f.Err)

	jsonData, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post failure notice to %s: %w", shared.MaskURL(w.url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("failure webhook returned status %d", resp.StatusCode)
	}

	return nil
}
