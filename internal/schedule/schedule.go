// Package schedule drives the periodic fetch/publish jobs and issues
// catch-up runs for cycles missed while the process was down.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one periodic cycle. Last reads the instant of the job's most
// recent successful run; Run executes one cycle, with late marking an
// out-of-band catch-up issued at startup.
type Job struct {
	Name  string
	Spec  string
	Grace time.Duration
	Last  func() time.Time
	Run   func(ctx context.Context, late bool)
}

type entry struct {
	job      Job
	schedule cron.Schedule

	// mu serializes runs of one job so a startup catch-up and the first
	// scheduled fire cannot overlap.
	mu sync.Mutex
}

// Scheduler fires jobs on their cron cadences.
type Scheduler struct {
	cron    *cron.Cron
	entries []*entry
	wg      sync.WaitGroup
}

// New parses every job spec up front; a bad spec fails construction.
func New(jobs ...Job) (*Scheduler, error) {
	s := &Scheduler{cron: cron.New(cron.WithLogger(cronLogger{}))}
	for _, job := range jobs {
		parsed, err := cron.ParseStandard(job.Spec)
		if err != nil {
			return nil, fmt.Errorf("job %s: parse schedule %q: %w", job.Name, job.Spec, err)
		}
		s.entries = append(s.entries, &entry{job: job, schedule: parsed})
	}
	return s, nil
}

// Start checks every job for a missed cycle, issuing an immediate late run
// when the next fire after the last recorded success is already past its
// grace window, then begins the cron cadence. Scheduled triggers always run
// un-flagged; an overdue gap observed at trigger time is only logged.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, e := range s.entries {
		e := e
		if overdue, ok := missed(e, time.Now()); ok {
			slog.Warn("Missed cycle detected, issuing catch-up run",
				"job", e.job.Name,
				"overdue", overdue,
			)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.runSerialized(ctx, e, true)
			}()
		}

		s.cron.Schedule(e.schedule, cron.FuncJob(func() {
			if overdue, ok := missed(e, time.Now()); ok {
				slog.Warn("Cycle overdue at trigger time",
					"job", e.job.Name,
					"overdue", overdue,
				)
			}
			s.wg.Add(1)
			defer s.wg.Done()
			s.runSerialized(ctx, e, false)
		}))
	}
	s.cron.Start()
	return nil
}

// Stop halts the cadence and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.wg.Wait()
}

func (s *Scheduler) runSerialized(ctx context.Context, e *entry, late bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.job.Run(ctx, late)
}

// missed reports whether the job's next fire after its last recorded
// success, plus the grace window, is already in the past. For a
// fixed-period spec this is exactly: now - last > period + grace.
func missed(e *entry, now time.Time) (time.Duration, bool) {
	last := e.job.Last()
	if last.IsZero() {
		return 0, false
	}
	due := e.schedule.Next(last).Add(e.job.Grace)
	if now.After(due) {
		return now.Sub(due), true
	}
	return 0, false
}

// cronLogger routes the cron runner's own messages through slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error(msg, append(keysAndValues, "error", err)...)
}
