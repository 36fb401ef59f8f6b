// Package config provides configuration parsing and validation for stormcrier.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"stormcrier/internal/filter"
)

// Config holds all configuration parameters for the bot.
type Config struct {
	// Weather feed
	FeedBaseURL   string
	FeedArea      string
	FeedGridpoint string
	FeedUserAgent string
	Location      string

	// Alert filtering
	RulesPath string

	// Publishing
	PublishBaseURL string
	PublishToken   string
	Publisher      string
	FatalCodes     string
	WebhookSinkURL string
	KafkaBrokers   string
	KafkaTopic     string
	MaxAlertPosts  int
	Seed           int64

	// Failure notification
	NotifyWebhookURL string
	EmailFrom        string
	EmailTo          string
	ResendAPIKey     string
	SESRegion        string

	// Delivery history
	HistoryDSN string

	// Ops endpoints
	ListenAddr string

	// Stats persistence
	StatsBackend string
	StatsPath    string
	RedisAddr    string
	StatsKey     string

	// Scheduling
	ForecastSpec string
	AlertSpec    string
	Grace        time.Duration

	// Retry policy
	MaxAttempts    int
	InitialDelay   time.Duration
	DelayIncrement time.Duration
}

// Validate checks that all required configuration fields are set and have
// valid values. Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.FeedBaseURL == "" {
		return fmt.Errorf("feed-base-url cannot be empty")
	}
	if c.FeedArea == "" {
		return fmt.Errorf("feed-area cannot be empty")
	}
	if c.FeedGridpoint == "" {
		return fmt.Errorf("feed-gridpoint cannot be empty")
	}
	if c.Location == "" {
		return fmt.Errorf("location cannot be empty")
	}
	if c.PublishBaseURL == "" {
		return fmt.Errorf("publish-base-url cannot be empty")
	}
	if c.PublishToken == "" {
		return fmt.Errorf("publish-token cannot be empty")
	}
	if c.Publisher == "" {
		return fmt.Errorf("publisher cannot be empty")
	}
	if _, err := ParseCodes(c.FatalCodes); err != nil {
		return fmt.Errorf("invalid publish-fatal-codes: %w", err)
	}

	switch c.StatsBackend {
	case "file":
		if c.StatsPath == "" {
			return fmt.Errorf("stats-path cannot be empty with the file backend")
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("redis-addr cannot be empty with the redis backend")
		}
		if c.StatsKey == "" {
			return fmt.Errorf("stats-key cannot be empty with the redis backend")
		}
	default:
		return fmt.Errorf("stats-backend must be file or redis, got %q", c.StatsBackend)
	}

	if c.ForecastSpec == "" {
		return fmt.Errorf("forecast-spec cannot be empty")
	}
	if c.AlertSpec == "" {
		return fmt.Errorf("alert-spec cannot be empty")
	}
	if c.Grace < 0 {
		return fmt.Errorf("grace must be >= 0")
	}

	if c.MaxAttempts < 1 {
		return fmt.Errorf("max-attempts must be >= 1")
	}
	if c.InitialDelay < 0 {
		return fmt.Errorf("initial-delay must be >= 0")
	}
	if c.DelayIncrement < 0 {
		return fmt.Errorf("delay-increment must be >= 0")
	}
	if c.MaxAlertPosts < 0 {
		return fmt.Errorf("max-alert-posts must be >= 0")
	}

	if (c.EmailFrom == "") != (c.EmailTo == "") {
		return fmt.Errorf("email-from and email-to must be set together")
	}

	return nil
}

// ParseCodes parses a comma-separated list of HTTP status codes.
// An empty string returns nil, meaning the built-in default set applies.
func ParseCodes(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}

	var codes []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid status code %q", part)
		}
		if code < 100 || code > 599 {
			return nil, fmt.Errorf("status code out of range: %d", code)
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// ParseList splits a comma-separated list, trimming spaces and dropping
// empty entries.
func ParseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// LoadRules reads the filter rule file. An empty path returns no rules, so
// every fetched alert is published.
func LoadRules(path string) ([]filter.Config, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var rules []filter.Config
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	return rules, nil
}
