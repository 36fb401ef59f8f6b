package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"stormcrier/internal/retry"
	"stormcrier/internal/shared"
)

// Webhook posts the message JSON to an arbitrary HTTP endpoint. Useful as a
// dry-run destination and as a secondary sink.
type Webhook struct {
	url        string
	httpClient *http.Client
}

// NewWebhook returns a webhook sink for url.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:        url,
		httpClient: &http.Client{Timeout: statusTimeout},
	}
}

// Name returns the publisher identifier.
func (w *Webhook) Name() string {
	return "webhook"
}

// Publish delivers text as a JSON payload. Webhook failures are always
// transient; the endpoint carries no platform rejection semantics.
func (w *Webhook) Publish(ctx context.Context, text string) (Receipt, error) {
	id := uuid.New().String()
	payload, err := json.Marshal(map[string]string{"id": id, "text": text})
	if err != nil {
		return Receipt{}, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return Receipt{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return Receipt{}, &retry.TransientError{Op: "post to " + shared.MaskURL(w.url), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Receipt{}, &retry.TransientError{
			Op:  "post to " + shared.MaskURL(w.url),
			Err: fmt.Errorf("status %d", resp.StatusCode),
		}
	}
	return Receipt{ID: id, CreatedAt: time.Now().UTC()}, nil
}
