// Package pipeline orchestrates the publish cycles: fetch, filter, build,
// publish, record.
package pipeline

import (
	"context"
	"time"

	"stormcrier/internal/feed"
	"stormcrier/internal/filter"
	"stormcrier/internal/history"
	"stormcrier/internal/publish"
)

// Feed fetches weather data from the upstream service.
type Feed interface {
	// ActiveAlerts returns the currently active alerts for the configured area.
	ActiveAlerts(ctx context.Context) ([]filter.Record, error)

	// Forecast returns the upcoming forecast for the configured gridpoint.
	Forecast(ctx context.Context) (*feed.Forecast, error)
}

// Sink publishes one post to a platform.
type Sink interface {
	// Publish posts text and returns the platform receipt.
	Publish(ctx context.Context, text string) (publish.Receipt, error)

	// Name returns the sink name for logging.
	Name() string
}

// StatsRecorder tracks cycle completion instants and counters.
type StatsRecorder interface {
	SetLastUpdate(t time.Time)
	SetLastAlertUpdate(t time.Time)
	Add(category string, n int64)
}

// HistoryRecorder stores published posts for auditing.
type HistoryRecorder interface {
	Record(ctx context.Context, d history.Delivery) error
}
