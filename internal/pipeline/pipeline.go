package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stormcrier/internal/filter"
	"stormcrier/internal/history"
	"stormcrier/internal/message"
	"stormcrier/internal/publish"
)

// defaultMaxAlertPosts caps how many alert posts one cycle may publish.
const defaultMaxAlertPosts = 5

// Config carries the pipeline collaborators.
type Config struct {
	Feed          Feed
	Chain         *filter.Chain
	Builder       *message.Builder
	Primary       Sink
	Mirrors       []Sink
	Stats         StatsRecorder
	History       HistoryRecorder // nil disables delivery history
	MaxAlertPosts int             // 0 means defaultMaxAlertPosts
}

// Pipeline runs the forecast and alert publish cycles.
type Pipeline struct {
	feed          Feed
	chain         *filter.Chain
	builder       *message.Builder
	primary       Sink
	mirrors       []Sink
	stats         StatsRecorder
	history       HistoryRecorder
	maxAlertPosts int
}

// New creates a pipeline.
func New(cfg Config) *Pipeline {
	maxPosts := cfg.MaxAlertPosts
	if maxPosts <= 0 {
		maxPosts = defaultMaxAlertPosts
	}
	return &Pipeline{
		feed:          cfg.Feed,
		chain:         cfg.Chain,
		builder:       cfg.Builder,
		primary:       cfg.Primary,
		mirrors:       cfg.Mirrors,
		stats:         cfg.Stats,
		history:       cfg.History,
		maxAlertPosts: maxPosts,
	}
}

// RunForecast fetches the forecast and publishes one post. The stats
// timestamp moves only after the primary publish succeeds.
func (p *Pipeline) RunForecast(ctx context.Context, late bool) error {
	fc, err := p.feed.Forecast(ctx)
	if err != nil {
		return err
	}

	text := p.builder.Forecast(fc, late)
	receipt, err := p.primary.Publish(ctx, text)
	if err != nil {
		return err
	}
	slog.Info("Published forecast",
		"sink", p.primary.Name(),
		"receipt_id", receipt.ID,
		"late", late,
	)

	p.mirror(ctx, text)
	p.stats.SetLastUpdate(time.Now().UTC())
	p.stats.Add("forecastsPublished", 1)
	p.record(ctx, history.Delivery{
		ReceiptID:   receipt.ID,
		CycleID:     uuid.New().String(),
		Job:         "forecast",
		Late:        late,
		Message:     text,
		PublishedAt: publishedAt(receipt),
	})

	return nil
}

// RunAlerts fetches active alerts, filters them, and publishes one post per
// survivor up to the cycle cap. A cycle with zero survivors still succeeds;
// only a failed fetch, filter, or primary publish leaves the stats timestamp
// untouched so the cycle is retried.
func (p *Pipeline) RunAlerts(ctx context.Context, late bool) error {
	alerts, err := p.feed.ActiveAlerts(ctx)
	if err != nil {
		return err
	}

	survivors, err := p.chain.Apply(alerts)
	if err != nil {
		return fmt.Errorf("filter alerts: %w", err)
	}

	cycleID := uuid.New().String()
	published := 0
	for _, rec := range survivors {
		if published == p.maxAlertPosts {
			slog.Warn("Alert post cap reached, dropping remainder",
				"cap", p.maxAlertPosts,
				"dropped", len(survivors)-published,
			)
			break
		}

		text := p.builder.Alert(rec)
		receipt, err := p.primary.Publish(ctx, text)
		if err != nil {
			return err
		}
		slog.Info("Published alert",
			"sink", p.primary.Name(),
			"receipt_id", receipt.ID,
			"event", eventType(rec),
		)

		p.mirror(ctx, text)
		p.record(ctx, history.Delivery{
			ReceiptID:   receipt.ID,
			CycleID:     cycleID,
			Job:         "alerts",
			Late:        late,
			Message:     text,
			EventTypes:  []string{eventType(rec)},
			PublishedAt: publishedAt(receipt),
		})
		published++
	}

	if len(survivors) == 0 {
		slog.Info("No alerts survived filtering", "fetched", len(alerts))
	}

	p.stats.SetLastAlertUpdate(time.Now().UTC())
	p.stats.Add("alertCycles", 1)
	if published > 0 {
		p.stats.Add("alertsPublished", int64(published))
	}

	return nil
}

// mirror fans the post out to the mirror sinks. Mirror failures are logged;
// the cycle already succeeded on the primary.
func (p *Pipeline) mirror(ctx context.Context, text string) {
	for _, m := range p.mirrors {
		if _, err := m.Publish(ctx, text); err != nil {
			slog.Warn("Mirror publish failed", "sink", m.Name(), "error", err)
		}
	}
}

// record stores one delivery row. History failures are logged; the post is
// already out.
func (p *Pipeline) record(ctx context.Context, d history.Delivery) {
	if p.history == nil {
		return
	}
	if err := p.history.Record(ctx, d); err != nil {
		slog.Warn("Failed to record delivery", "receipt_id", d.ReceiptID, "error", err)
	}
}

// eventType extracts properties.event for history rows and logging.
func eventType(rec filter.Record) string {
	v, ok := filter.Resolve(rec, "properties.event")
	if !ok {
		return "unknown"
	}
	s, ok := v.(string)
	if !ok {
		return "unknown"
	}
	return s
}

func publishedAt(r publish.Receipt) time.Time {
	if !r.CreatedAt.IsZero() {
		return r.CreatedAt
	}
	return time.Now().UTC()
}
