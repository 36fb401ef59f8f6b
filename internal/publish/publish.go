// Package publish delivers formatted posts to their destinations.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Receipt identifies one accepted post.
type Receipt struct {
	ID        string
	URL       string
	CreatedAt time.Time
}

// Publisher delivers one post to a destination.
type Publisher interface {
	// Publish sends text. Failures are tagged *retry.TransientError or
	// *retry.FatalError so the retry controller can classify them.
	Publish(ctx context.Context, text string) (Receipt, error)
	// Name returns the publisher identifier used in configuration.
	Name() string
}

// Registry holds the configured publishers by name.
type Registry struct {
	mu         sync.RWMutex
	publishers map[string]Publisher
}

// NewRegistry creates an empty publisher registry.
func NewRegistry() *Registry {
	return &Registry{publishers: make(map[string]Publisher)}
}

// Register adds or replaces a publisher.
func (r *Registry) Register(p Publisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishers[p.Name()] = p
	slog.Info("Registered publisher", "name", p.Name())
}

// Get returns the publisher registered under name.
func (r *Registry) Get(name string) (Publisher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.publishers[name]
	if !ok {
		return nil, fmt.Errorf("no publisher registered for %q", name)
	}
	return p, nil
}

// List returns the registered names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.publishers))
	for name := range r.publishers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
