// Package retry runs fetch/publish cycles to completion under a bounded
// linear-backoff policy, short-circuiting on permanent platform rejections.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Policy bounds the retry loop. MaxAttempts counts every execution of the
// operation including the first; the delay before each retry grows linearly
// from InitialDelay by DelayIncrement.
type Policy struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	DelayIncrement time.Duration
}

// DefaultPolicy returns the production cadence: three executions with
// delays of 0 and ~2.2 minutes between them.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialDelay:   0,
		DelayIncrement: 131072 * time.Millisecond,
	}
}

// Validate checks the policy bounds.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.InitialDelay < 0 {
		return fmt.Errorf("initial delay must not be negative, got %v", p.InitialDelay)
	}
	if p.DelayIncrement < 0 {
		return fmt.Errorf("delay increment must not be negative, got %v", p.DelayIncrement)
	}
	return nil
}

// Delay returns the wait before retry k (1-indexed). Delays are additive
// across one cycle and never reset between failures of the same cycle.
func (p Policy) Delay(retry int) time.Duration {
	return p.InitialDelay + time.Duration(retry-1)*p.DelayIncrement
}

// Controller runs operations under a Policy. Retries of one operation are
// strictly sequential; the controller never runs two attempts concurrently.
type Controller struct {
	policy Policy

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New returns a Controller for the given policy.
func New(policy Policy) *Controller {
	return &Controller{policy: policy, sleep: wait}
}

// Run executes op until it succeeds, attempts are exhausted, or a fatal
// error ends the loop early. On exhaustion onExhausted is invoked exactly
// once with the last error before Run returns; it is never invoked on
// success or when ctx is cancelled while waiting. The returned error is nil
// on success and wraps the last failure otherwise.
func (c *Controller) Run(ctx context.Context, job string, op func(context.Context) error, onExhausted func(error)) error {
	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				slog.Info("Operation recovered",
					"job", job,
					"attempt", attempt,
				)
			}
			return nil
		}
		lastErr = err

		var fatal *FatalError
		if errors.As(err, &fatal) {
			slog.Error("Permanent rejection, not retrying",
				"job", job,
				"attempt", attempt,
				"status", fatal.Code,
				"error", err,
			)
			return c.exhaust(job, attempt, lastErr, onExhausted)
		}
		if attempt == c.policy.MaxAttempts {
			break
		}

		delay := c.policy.Delay(attempt)
		slog.Warn("Operation failed, retrying",
			"job", job,
			"attempt", attempt,
			"max_attempts", c.policy.MaxAttempts,
			"delay", delay,
			"error", err,
		)
		if err := c.sleep(ctx, delay); err != nil {
			slog.Info("Retry wait interrupted",
				"job", job,
				"attempt", attempt,
				"error", err,
			)
			return fmt.Errorf("%s interrupted after %d attempts: %w", job, attempt, err)
		}
	}
	return c.exhaust(job, c.policy.MaxAttempts, lastErr, onExhausted)
}

func (c *Controller) exhaust(job string, attempts int, lastErr error, onExhausted func(error)) error {
	slog.Error("Attempts exhausted",
		"job", job,
		"attempts", attempts,
		"error", lastErr,
	)
	if onExhausted != nil {
		onExhausted(lastErr)
	}
	return fmt.Errorf("%s failed after %d attempts: %w", job, attempts, lastErr)
}

// wait sleeps for d unless ctx ends first. Zero and negative delays yield
// only to cancellation.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
