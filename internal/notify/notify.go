// Package notify tells operators when a job has exhausted its publish attempts.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Failure describes a job that gave up after its final attempt.
type Failure struct {
	Job string
	Err error
	At  time.Time
}

// Notifier delivers a failure notice through one channel.
type Notifier interface {
	// Name returns the channel name (e.g., "webhook", "email")
	Name() string

	// Notify delivers the failure notice.
	Notify(ctx context.Context, f Failure) error
}

// Fanout delivers each failure notice to every registered notifier.
type Fanout struct {
	notifiers []Notifier
}

// NewFanout creates a fanout over the given notifiers.
func NewFanout(notifiers ...Notifier) *Fanout {
	return &Fanout{notifiers: notifiers}
}

// Notify sends f to all notifiers. Delivery failures are logged and skipped;
// an undeliverable notice never propagates back into the cycle.
func (fo *Fanout) Notify(ctx context.Context, f Failure) {
	for _, n := range fo.notifiers {
		if err := n.Notify(ctx, f); err != nil {
			slog.Error("Failed to deliver failure notice",
				"notifier", n.Name(),
				"job", f.Job,
				"error", err,
			)
			continue
		}
		slog.Info("Delivered failure notice", "notifier", n.Name(), "job", f.Job)
	}
}
