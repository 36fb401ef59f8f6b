package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"stormcrier/internal/api"
	"stormcrier/internal/config"
	"stormcrier/internal/feed"
	"stormcrier/internal/filter"
	"stormcrier/internal/history"
	"stormcrier/internal/message"
	"stormcrier/internal/notify"
	"stormcrier/internal/notify/email"
	"stormcrier/internal/pipeline"
	"stormcrier/internal/publish"
	"stormcrier/internal/retry"
	"stormcrier/internal/schedule"
	"stormcrier/internal/shared"
	"stormcrier/internal/stats"
)

// app bundles the built components that run drives and tears down.
type app struct {
	scheduler *schedule.Scheduler
	store     *stats.Store
	ops       *api.Server
	closers   []func() error
}

// close releases resources in reverse construction order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("Close failed during shutdown", "error", err)
		}
	}
}

// buildApp wires every component from configuration. On error the partially
// built app is still returned so its closers run.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		return a, err
	}
	chain, err := filter.NewChain(rules)
	if err != nil {
		return a, fmt.Errorf("invalid filter rules: %w", err)
	}
	slog.Info("Filter chain ready", "rules", chain.Len())

	backend, err := a.statsBackend(ctx, cfg)
	if err != nil {
		return a, err
	}
	store, err := stats.Open(ctx, backend)
	if err != nil {
		return a, err
	}
	a.store = store

	feedClient := feed.NewClient(feed.Config{
		BaseURL:   cfg.FeedBaseURL,
		Area:      cfg.FeedArea,
		Gridpoint: cfg.FeedGridpoint,
		UserAgent: cfg.FeedUserAgent,
	})
	builder := message.NewBuilder(cfg.Location, cfg.Seed)

	fatalCodes, err := config.ParseCodes(cfg.FatalCodes)
	if err != nil {
		return a, err
	}
	registry := publish.NewRegistry()
	registry.Register(publish.NewStatusAPI(publish.StatusAPIConfig{
		BaseURL:    cfg.PublishBaseURL,
		Token:      cfg.PublishToken,
		FatalCodes: fatalCodes,
	}))
	if cfg.WebhookSinkURL != "" {
		registry.Register(publish.NewWebhook(cfg.WebhookSinkURL))
	}
	if cfg.KafkaBrokers != "" {
		k := publish.NewKafka(config.ParseList(cfg.KafkaBrokers), cfg.KafkaTopic)
		registry.Register(k)
		a.closers = append(a.closers, k.Close)
	}

	primary, err := registry.Get(cfg.Publisher)
	if err != nil {
		return a, err
	}
	var mirrors []pipeline.Sink
	for _, name := range registry.List() {
		if name == primary.Name() {
			continue
		}
		m, err := registry.Get(name)
		if err != nil {
			return a, err
		}
		mirrors = append(mirrors, m)
	}

	var histStore *history.Store
	if cfg.HistoryDSN != "" {
		histStore, err = history.Open(cfg.HistoryDSN)
		if err != nil {
			return a, err
		}
		a.closers = append(a.closers, histStore.Close)
	}
	var histRecorder pipeline.HistoryRecorder
	var histSource api.HistorySource
	if histStore != nil {
		histRecorder = histStore
		histSource = histStore
	}

	pl := pipeline.New(pipeline.Config{
		Feed:          feedClient,
		Chain:         chain,
		Builder:       builder,
		Primary:       primary,
		Mirrors:       mirrors,
		Stats:         store,
		History:       histRecorder,
		MaxAlertPosts: cfg.MaxAlertPosts,
	})

	fanout := notify.NewFanout(a.notifiers(ctx, cfg)...)
	ctrl := retry.New(retry.Policy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialDelay:   cfg.InitialDelay,
		DelayIncrement: cfg.DelayIncrement,
	})

	exhausted := func(job string) func(error) {
		return func(err error) {
			store.Add("retriesExhausted", 1)
			fanout.Notify(context.Background(), notify.Failure{
				Job: job,
				Err: err,
				At:  time.Now().UTC(),
			})
		}
	}

	scheduler, err := schedule.New(
		schedule.Job{
			Name:  "forecast",
			Spec:  cfg.ForecastSpec,
			Grace: cfg.Grace,
			Last:  store.LastUpdate,
			Run: func(ctx context.Context, late bool) {
				err := ctrl.Run(ctx, "forecast", func(ctx context.Context) error {
					return pl.RunForecast(ctx, late)
				}, exhausted("forecast"))
				if err != nil {
					slog.Error("Forecast cycle failed", "late", late, "error", err)
				}
			},
		},
		schedule.Job{
			Name:  "alerts",
			Spec:  cfg.AlertSpec,
			Grace: cfg.Grace,
			Last:  store.LastAlertUpdate,
			Run: func(ctx context.Context, late bool) {
				err := ctrl.Run(ctx, "alerts", func(ctx context.Context) error {
					return pl.RunAlerts(ctx, late)
				}, exhausted("alerts"))
				if err != nil {
					slog.Error("Alert cycle failed", "late", late, "error", err)
				}
			},
		},
	)
	if err != nil {
		return a, err
	}
	a.scheduler = scheduler
	a.ops = api.New(store, histSource)

	return a, nil
}

// statsBackend picks the configured stats persistence backend.
func (a *app) statsBackend(ctx context.Context, cfg *config.Config) (stats.Backend, error) {
	switch cfg.StatsBackend {
	case "redis":
		client, err := shared.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return stats.NewRedisBackend(client, cfg.StatsKey), nil
	default:
		return stats.NewFileBackend(cfg.StatsPath), nil
	}
}

// notifiers builds the configured failure notice channels.
func (a *app) notifiers(ctx context.Context, cfg *config.Config) []notify.Notifier {
	var out []notify.Notifier

	if cfg.NotifyWebhookURL != "" {
		wh, err := notify.NewWebhook(cfg.NotifyWebhookURL)
		if err != nil {
			slog.Warn("Skipping failure webhook", "error", err)
		} else {
			out = append(out, wh)
		}
	}

	if cfg.EmailFrom != "" {
		mailers := email.NewRegistry(
			email.NewResend(cfg.ResendAPIKey),
			email.NewSES(ctx, cfg.SESRegion),
		)
		if mailers.Configured() {
			out = append(out, notify.NewMail(mailers, cfg.EmailFrom, config.ParseList(cfg.EmailTo)))
		} else {
			slog.Warn("Email notices configured but no mail provider is available")
		}
	}

	if len(out) == 0 {
		slog.Info("No failure notifiers configured, exhaustion is log-only")
	}
	return out
}
