package pipeline

import (
	"context"
	"fmt"
	"time"

	"stormcrier/internal/feed"
	"stormcrier/internal/filter"
	"stormcrier/internal/history"
	"stormcrier/internal/publish"
)

// FakeFeed is a test fake for Feed.
type FakeFeed struct {
	Alerts      []filter.Record
	AlertsErr   error
	ForecastDoc *feed.Forecast
	ForecastErr error
}

func (f *FakeFeed) ActiveAlerts(ctx context.Context) ([]filter.Record, error) {
	if f.AlertsErr != nil {
		return nil, f.AlertsErr
	}
	return f.Alerts, nil
}

func (f *FakeFeed) Forecast(ctx context.Context) (*feed.Forecast, error) {
	if f.ForecastErr != nil {
		return nil, f.ForecastErr
	}
	return f.ForecastDoc, nil
}

// FakeSink is a test fake for Sink.
type FakeSink struct {
	SinkName   string
	Published  []string
	PublishErr error
}

func (f *FakeSink) Publish(ctx context.Context, text string) (publish.Receipt, error) {
	if f.PublishErr != nil {
		return publish.Receipt{}, f.PublishErr
	}
	f.Published = append(f.Published, text)
	return publish.Receipt{
		ID:        fmt.Sprintf("rcpt-%d", len(f.Published)),
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (f *FakeSink) Name() string { return f.SinkName }

// FakeStats is a test fake for StatsRecorder.
type FakeStats struct {
	LastUpdates      []time.Time
	LastAlertUpdates []time.Time
	Counters         map[string]int64
}

func NewFakeStats() *FakeStats {
	return &FakeStats{Counters: make(map[string]int64)}
}

func (f *FakeStats) SetLastUpdate(t time.Time) {
	f.LastUpdates = append(f.LastUpdates, t)
}

func (f *FakeStats) SetLastAlertUpdate(t time.Time) {
	f.LastAlertUpdates = append(f.LastAlertUpdates, t)
}

func (f *FakeStats) Add(category string, n int64) {
	f.Counters[category] += n
}

// FakeHistory is a test fake for HistoryRecorder.
type FakeHistory struct {
	Recorded  []history.Delivery
	RecordErr error
}

func (f *FakeHistory) Record(ctx context.Context, d history.Delivery) error {
	if f.RecordErr != nil {
		return f.RecordErr
	}
	f.Recorded = append(f.Recorded, d)
	return nil
}
