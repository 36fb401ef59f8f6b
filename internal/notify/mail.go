package notify

import (
	"context"
	"fmt"
	"time"

	"stormcrier/internal/notify/email"
)

// Mail renders failure notices as email through a provider registry.
type Mail struct {
	registry *email.Registry
	from     string
	to       []string
}

// NewMail creates an email notifier.
func NewMail(registry *email.Registry, from string, to []string) *Mail {
	return &Mail{registry: registry, from: from, to: to}
}

// Name returns the channel name.
func (m *Mail) Name() string {
	return "email"
}

// Notify sends the failure notice to the configured recipients.
func (m *Mail) Notify(ctx context.Context, f Failure) error {
	msg := &email.Message{
		From:    m.from,
		To:      m.to,
		Subject: fmt.Sprintf("stormcrier: %s exhausted all publish attempts", f.Job),
		Text: fmt.Sprintf("Job: %s\nTime: %s\nLast error: %v\n",
			f.Job, f.At.Format(time.RFC3339), f.Err),
	}
	return m.registry.Send(ctx, msg)
}
