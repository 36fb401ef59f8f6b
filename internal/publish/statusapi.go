package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"stormcrier/internal/retry"
	"stormcrier/internal/shared"
)

const statusTimeout = 30 * time.Second

// DefaultFatalCodes are the platform rejections that will not succeed on a
// retry: revoked credentials, suspension, deleted account, duplicate or
// unprocessable content, policy block.
func DefaultFatalCodes() []int {
	return []int{401, 403, 410, 422, 451}
}

// StatusAPIConfig configures the status platform client. FatalCodes is the
// injectable set of response codes treated as permanent; empty means
// DefaultFatalCodes.
type StatusAPIConfig struct {
	BaseURL    string
	Token      string
	FatalCodes []int
	Timeout    time.Duration
}

// StatusAPI publishes posts to the social platform's status endpoint.
type StatusAPI struct {
	baseURL    string
	token      string
	fatalCodes map[int]struct{}
	httpClient *http.Client
}

// NewStatusAPI returns the platform client.
func NewStatusAPI(cfg StatusAPIConfig) *StatusAPI {
	codes := cfg.FatalCodes
	if len(codes) == 0 {
		codes = DefaultFatalCodes()
	}
	set := make(map[int]struct{}, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = statusTimeout
	}
	return &StatusAPI{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		fatalCodes: set,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns the publisher identifier.
func (s *StatusAPI) Name() string {
	return "statusapi"
}

// Publish posts text. The idempotency key is derived from the text, so a
// retried attempt of the same post cannot double-publish. Response codes in
// the fatal set become permanent rejections; everything else is transient.
func (s *StatusAPI) Publish(ctx context.Context, text string) (Receipt, error) {
	payload, err := json.Marshal(map[string]string{"status": text})
	if err != nil {
		return Receipt{}, fmt.Errorf("marshal status: %w", err)
	}

	url := s.baseURL + "/api/v1/statuses"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Receipt{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Idempotency-Key", uuid.NewSHA1(uuid.NameSpaceURL, []byte(text)).String())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Receipt{}, &retry.TransientError{Op: "publish to " + shared.MaskURL(url), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		reason := fmt.Errorf("%s", strings.TrimSpace(string(body)))
		if _, fatal := s.fatalCodes[resp.StatusCode]; fatal {
			return Receipt{}, &retry.FatalError{Code: resp.StatusCode, Op: "publish status", Err: reason}
		}
		return Receipt{}, &retry.TransientError{
			Op:  fmt.Sprintf("publish status (%d)", resp.StatusCode),
			Err: reason,
		}
	}

	var out struct {
		ID        string    `json:"id"`
		URL       string    `json:"url"`
		CreatedAt time.Time `json:"created_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Receipt{}, &retry.TransientError{Op: "decode status response", Err: err}
	}

	slog.Info("Status published", "id", out.ID, "chars", len([]rune(text)))
	return Receipt{ID: out.ID, URL: out.URL, CreatedAt: out.CreatedAt}, nil
}
