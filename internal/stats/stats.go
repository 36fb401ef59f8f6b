// Package stats persists the delivery statistics that drive missed-cycle
// detection: the last successful forecast and alert timestamps plus an
// open-ended map of counters.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const persistTimeout = 10 * time.Second

// Record is the persisted state. The two timestamps are written by the
// forecast and alert jobs respectively; Counters is keyed by category name.
type Record struct {
	LastUpdate      time.Time        `json:"lastUpdate"`
	LastAlertUpdate time.Time        `json:"lastAlertUpdate"`
	Counters        map[string]int64 `json:"counters"`
}

// Clone returns a deep copy safe to use outside the store's lock.
func (r Record) Clone() Record {
	counters := make(map[string]int64, len(r.Counters))
	for k, v := range r.Counters {
		counters[k] = v
	}
	return Record{
		LastUpdate:      r.LastUpdate,
		LastAlertUpdate: r.LastAlertUpdate,
		Counters:        counters,
	}
}

// Backend loads and saves the whole record. Load reports found=false on a
// clean first run.
type Backend interface {
	Load(ctx context.Context) (Record, bool, error)
	Save(ctx context.Context, rec Record) error
	Name() string
}

// Store wraps a Record so that every mutation schedules a best-effort write
// of the whole record through a coalescing background writer. Persistence
// failures are logged and never surface to callers; the in-memory record
// stays authoritative. The forecast and alert jobs write disjoint fields,
// the mutex keeps their concurrent writes from corrupting one another.
type Store struct {
	mu      sync.Mutex
	rec     Record
	backend Backend

	saveCh    chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Open loads the record from the backend, initializing both timestamps to
// now on a clean first run, and starts the background writer.
func Open(ctx context.Context, backend Backend) (*Store, error) {
	rec, found, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	if !found {
		now := time.Now().UTC()
		rec = Record{LastUpdate: now, LastAlertUpdate: now, Counters: map[string]int64{}}
		if err := backend.Save(ctx, rec); err != nil {
			return nil, fmt.Errorf("initialize stats: %w", err)
		}
		slog.Info("Initialized stats record", "backend", backend.Name())
	}
	if rec.Counters == nil {
		rec.Counters = map[string]int64{}
	}

	s := &Store{
		rec:     rec,
		backend: backend,
		saveCh:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writer()
	return s, nil
}

// SetLastUpdate records the completion instant of a forecast cycle.
func (s *Store) SetLastUpdate(t time.Time) {
	s.mu.Lock()
	s.rec.LastUpdate = t
	s.mu.Unlock()
	s.scheduleSave()
}

// SetLastAlertUpdate records the completion instant of an alert cycle.
func (s *Store) SetLastAlertUpdate(t time.Time) {
	s.mu.Lock()
	s.rec.LastAlertUpdate = t
	s.mu.Unlock()
	s.scheduleSave()
}

// LastUpdate returns the last successful forecast cycle instant.
func (s *Store) LastUpdate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.LastUpdate
}

// LastAlertUpdate returns the last successful alert cycle instant.
func (s *Store) LastAlertUpdate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.LastAlertUpdate
}

// Add increments a counter category by n, creating it on first use.
func (s *Store) Add(category string, n int64) {
	s.mu.Lock()
	s.rec.Counters[category] += n
	s.mu.Unlock()
	s.scheduleSave()
}

// Snapshot returns a copy of the current record.
func (s *Store) Snapshot() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Clone()
}

// Flush stops the background writer and performs one final synchronous
// save. Call once at shutdown; the error is the final save's.
func (s *Store) Flush(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.done) })
	s.wg.Wait()

	s.mu.Lock()
	snapshot := s.rec.Clone()
	s.mu.Unlock()
	if err := s.backend.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("flush stats: %w", err)
	}
	return nil
}

// scheduleSave coalesces pending signals: one queued write covers every
// mutation that happened before it runs.
func (s *Store) scheduleSave() {
	select {
	case s.saveCh <- struct{}{}:
	default:
	}
}

func (s *Store) writer() {
	defer s.wg.Done()
	for {
		select {
		case <-s.saveCh:
			s.persist()
		case <-s.done:
			return
		}
	}
}

func (s *Store) persist() {
	s.mu.Lock()
	snapshot := s.rec.Clone()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.backend.Save(ctx, snapshot); err != nil {
		slog.Warn("Stats persistence failed, in-memory state kept",
			"backend", s.backend.Name(),
			"error", err,
		)
	}
}
