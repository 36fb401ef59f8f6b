// Package main provides the CLI entry point for stormcrier. It parses flags,
// wires the publish pipeline, and runs the scheduler until shutdown.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stormcrier/internal/config"
	"stormcrier/internal/shared"
)

func main() {
	cfg := config.Config{}
	flag.StringVar(&cfg.FeedBaseURL, "feed-base-url", shared.GetEnvOrDefault("FEED_BASE_URL", "https://api.weather.gov"), "Weather feed base URL")
	flag.StringVar(&cfg.FeedArea, "feed-area", shared.GetEnvOrDefault("FEED_AREA", "KS"), "Area code used for active alerts")
	flag.StringVar(&cfg.FeedGridpoint, "feed-gridpoint", shared.GetEnvOrDefault("FEED_GRIDPOINT", "ICT/60,48"), "Forecast gridpoint (office/x,y)")
	flag.StringVar(&cfg.FeedUserAgent, "feed-user-agent", shared.GetEnvOrDefault("FEED_USER_AGENT", "stormcrier (ops@example.com)"), "User-Agent header sent to the feed")
	flag.StringVar(&cfg.Location, "location", shared.GetEnvOrDefault("LOCATION", "Wichita, KS"), "Display name used in posts")
	flag.StringVar(&cfg.RulesPath, "rules", shared.GetEnvOrDefault("RULES_PATH", ""), "Alert filter rules JSON file (empty = publish everything)")
	flag.StringVar(&cfg.PublishBaseURL, "publish-base-url", shared.GetEnvOrDefault("PUBLISH_BASE_URL", ""), "Status platform base URL")
	flag.StringVar(&cfg.PublishToken, "publish-token", shared.GetEnvOrDefault("PUBLISH_TOKEN", ""), "Status platform bearer token")
	flag.StringVar(&cfg.Publisher, "publisher", shared.GetEnvOrDefault("PUBLISHER", "statusapi"), "Primary publisher name")
	flag.StringVar(&cfg.FatalCodes, "publish-fatal-codes", shared.GetEnvOrDefault("PUBLISH_FATAL_CODES", ""), "Status codes that stop retrying (comma-separated, empty = built-in set)")
	flag.StringVar(&cfg.WebhookSinkURL, "webhook-sink-url", shared.GetEnvOrDefault("WEBHOOK_SINK_URL", ""), "Mirror posts to this webhook (empty = disabled)")
	flag.StringVar(&cfg.KafkaBrokers, "kafka-brokers", shared.GetEnvOrDefault("KAFKA_BROKERS", ""), "Mirror posts to Kafka (comma-separated brokers, empty = disabled)")
	flag.StringVar(&cfg.KafkaTopic, "kafka-topic", shared.GetEnvOrDefault("KAFKA_TOPIC", "stormcrier.posts"), "Kafka topic for mirrored posts")
	flag.IntVar(&cfg.MaxAlertPosts, "max-alert-posts", 5, "Maximum alert posts per cycle")
	flag.Int64Var(&cfg.Seed, "seed", 0, "Random seed for trivia sampling (0 = random)")
	flag.StringVar(&cfg.NotifyWebhookURL, "notify-webhook-url", shared.GetEnvOrDefault("NOTIFY_WEBHOOK_URL", ""), "Failure notice webhook (empty = disabled)")
	flag.StringVar(&cfg.EmailFrom, "email-from", shared.GetEnvOrDefault("EMAIL_FROM", ""), "Failure notice sender address")
	flag.StringVar(&cfg.EmailTo, "email-to", shared.GetEnvOrDefault("EMAIL_TO", ""), "Failure notice recipients (comma-separated)")
	flag.StringVar(&cfg.ResendAPIKey, "resend-api-key", shared.GetEnvOrDefault("RESEND_API_KEY", ""), "Resend API key for failure notices")
	flag.StringVar(&cfg.SESRegion, "ses-region", shared.GetEnvOrDefault("AWS_REGION", "us-east-1"), "AWS region for SES failure notices")
	flag.StringVar(&cfg.HistoryDSN, "history-dsn", shared.GetEnvOrDefault("HISTORY_DSN", ""), "PostgreSQL DSN for delivery history (empty = disabled)")
	flag.StringVar(&cfg.ListenAddr, "listen-addr", shared.GetEnvOrDefault("LISTEN_ADDR", ":8090"), "Ops HTTP listen address")
	flag.StringVar(&cfg.StatsBackend, "stats-backend", shared.GetEnvOrDefault("STATS_BACKEND", "file"), "Stats persistence backend (file or redis)")
	flag.StringVar(&cfg.StatsPath, "stats-path", shared.GetEnvOrDefault("STATS_PATH", "data/stats.json"), "Stats file path (file backend)")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", shared.GetEnvOrDefault("REDIS_ADDR", "localhost:6379"), "Redis address (redis backend)")
	flag.StringVar(&cfg.StatsKey, "stats-key", shared.GetEnvOrDefault("STATS_KEY", "stormcrier:stats"), "Redis key for the stats record")
	flag.StringVar(&cfg.ForecastSpec, "forecast-spec", shared.GetEnvOrDefault("FORECAST_SPEC", "0 */6 * * *"), "Forecast cycle cron spec")
	flag.StringVar(&cfg.AlertSpec, "alert-spec", shared.GetEnvOrDefault("ALERT_SPEC", "*/10 * * * *"), "Alert cycle cron spec")
	flag.DurationVar(&cfg.Grace, "grace", 10*time.Minute, "Grace window before a cycle counts as missed")
	flag.IntVar(&cfg.MaxAttempts, "max-attempts", 3, "Publish attempts per cycle, including the first")
	flag.DurationVar(&cfg.InitialDelay, "initial-delay", 0, "Delay before the first retry")
	flag.DurationVar(&cfg.DelayIncrement, "delay-increment", 131072*time.Millisecond, "Extra delay added per retry")
	flag.Parse()

	setupLogger()

	slog.Info("Starting stormcrier",
		"feed", cfg.FeedBaseURL,
		"area", cfg.FeedArea,
		"gridpoint", cfg.FeedGridpoint,
		"location", cfg.Location,
		"publisher", cfg.Publisher,
		"stats_backend", cfg.StatsBackend,
		"forecast_spec", cfg.ForecastSpec,
		"alert_spec", cfg.AlertSpec,
	)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(&cfg); err != nil {
		slog.Error("Stormcrier failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Stormcrier stopped")
}

// setupLogger configures structured logging.
// Allow DEBUG level via environment variable for troubleshooting.
func setupLogger() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "DEBUG" || os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := buildApp(ctx, cfg)
	if a != nil {
		defer a.close()
	}
	if err != nil {
		return err
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: a.ops.Routes()}
	go func() {
		slog.Info("Ops endpoints listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Ops server failed", "error", err)
		}
	}()

	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}
	slog.Info("Scheduler started")

	<-ctx.Done()

	a.scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Ops server shutdown failed", "error", err)
	}
	if err := a.store.Flush(shutdownCtx); err != nil {
		slog.Warn("Final stats flush failed", "error", err)
	}

	return nil
}
