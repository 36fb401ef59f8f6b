// Package feed fetches forecasts and active alerts from the upstream
// weather API.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"stormcrier/internal/filter"
	"stormcrier/internal/retry"
	"stormcrier/internal/shared"
)

const defaultTimeout = 30 * time.Second

// Period is one forecast window from the gridpoint forecast document.
type Period struct {
	Name            string  `json:"name"`
	Temperature     float64 `json:"temperature"`
	TemperatureUnit string  `json:"temperatureUnit"`
	WindSpeed       string  `json:"windSpeed"`
	ShortForecast   string  `json:"shortForecast"`
}

// Forecast is the decoded gridpoint forecast.
type Forecast struct {
	Updated time.Time `json:"updated"`
	Periods []Period  `json:"periods"`
}

// Config holds the feed endpoints. Gridpoint is the office/grid pair, for
// example "TOP/31,80"; Area is the alert zone, for example "KS".
type Config struct {
	BaseURL   string
	Area      string
	Gridpoint string
	UserAgent string
	Timeout   time.Duration
}

// Client talks to the weather feed. All failures are transient: the feed
// has no permanent-rejection semantics, a failed fetch is always worth
// retrying.
type Client struct {
	baseURL    string
	area       string
	gridpoint  string
	userAgent  string
	httpClient *http.Client
}

// NewClient returns a Client for the configured feed.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		area:       cfg.Area,
		gridpoint:  cfg.Gridpoint,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ActiveAlerts returns the active alert features for the configured area as
// raw records, ready for the filter chain.
func (c *Client) ActiveAlerts(ctx context.Context) ([]filter.Record, error) {
	var doc struct {
		Features []filter.Record `json:"features"`
	}
	url := fmt.Sprintf("%s/alerts/active?area=%s", c.baseURL, c.area)
	if err := c.getJSON(ctx, url, &doc); err != nil {
		return nil, err
	}
	slog.Debug("Fetched active alerts", "count", len(doc.Features), "area", c.area)
	return doc.Features, nil
}

// Forecast returns the gridpoint forecast periods.
func (c *Client) Forecast(ctx context.Context) (*Forecast, error) {
	var doc struct {
		Properties Forecast `json:"properties"`
	}
	url := fmt.Sprintf("%s/gridpoints/%s/forecast", c.baseURL, c.gridpoint)
	if err := c.getJSON(ctx, url, &doc); err != nil {
		return nil, err
	}
	slog.Debug("Fetched forecast", "periods", len(doc.Properties.Periods), "gridpoint", c.gridpoint)
	return &doc.Properties, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request for %s: %w", shared.MaskURL(url), err)
	}
	req.Header.Set("Accept", "application/geo+json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retry.TransientError{Op: "fetch " + shared.MaskURL(url), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &retry.TransientError{
			Op:  "fetch " + shared.MaskURL(url),
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &retry.TransientError{Op: "decode " + shared.MaskURL(url), Err: err}
	}
	return nil
}
