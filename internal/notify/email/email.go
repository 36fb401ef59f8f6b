// Package email sends operator mail through external providers.
// It uses the Strategy pattern to support multiple backends (Resend, SES)
// with ordered fallback when the preferred provider fails.
package email

import (
	"context"
	"fmt"
	"log/slog"
)

// Message represents an email to be sent.
type Message struct {
	From    string
	To      []string
	Subject string
	Text    string
}

// Mailer is the interface that all mail providers must implement.
type Mailer interface {
	// Name returns the provider name (e.g., "resend", "ses")
	Name() string

	// Send sends an email using this provider.
	Send(ctx context.Context, msg *Message) error

	// IsConfigured returns true if the provider is properly configured.
	IsConfigured() bool
}

// Registry holds configured mailers in preference order.
type Registry struct {
	mailers []Mailer
}

// NewRegistry creates a registry from the given mailers, keeping only the
// configured ones. Order is preserved and determines fallback order.
func NewRegistry(mailers ...Mailer) *Registry {
	r := &Registry{}
	for _, m := range mailers {
		if !m.IsConfigured() {
			slog.Warn("Skipping unconfigured mail provider", "name", m.Name())
			continue
		}
		r.mailers = append(r.mailers, m)
		slog.Info("Registered mail provider", "name", m.Name())
	}
	return r
}

// Configured reports whether at least one provider is available.
func (r *Registry) Configured() bool {
	return len(r.mailers) > 0
}

// List returns the names of all registered providers in order.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.mailers))
	for _, m := range r.mailers {
		names = append(names, m.Name())
	}
	return names
}

// Send tries each provider in order until one succeeds.
func (r *Registry) Send(ctx context.Context, msg *Message) error {
	if len(r.mailers) == 0 {
		return fmt.Errorf("no configured mail provider available")
	}

	var lastErr error
	for _, m := range r.mailers {
		err := m.Send(ctx, msg)
		if err == nil {
			return nil
		}
		slog.Warn("Mail provider failed, trying fallback",
			"name", m.Name(),
			"error", err,
		)
		lastErr = err
	}

	return fmt.Errorf("all mail providers failed: %w", lastErr)
}
