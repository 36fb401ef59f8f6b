package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// Resend implements mail sending via the Resend API.
type Resend struct {
	client *resend.Client
	apiKey string
}

// NewResend creates a Resend mailer. An empty API key leaves it unconfigured.
func NewResend(apiKey string) *Resend {
	if apiKey == "" {
		slog.Warn("Resend API key not set, provider will be unavailable")
		return &Resend{}
	}

	client := resend.NewClient(apiKey)
	slog.Info("Resend mail provider initialized")

	return &Resend{
		client: client,
		apiKey: apiKey,
	}
}

// Name returns the provider name.
func (m *Resend) Name() string {
	return "resend"
}

// IsConfigured returns true if Resend is properly configured.
func (m *Resend) IsConfigured() bool {
	return m.client != nil && m.apiKey != ""
}

// Send sends an email via the Resend API.
func (m *Resend) Send(ctx context.Context, msg *Message) error {
	if m.client == nil {
		return fmt.Errorf("Resend client not initialized")
	}

	if len(msg.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}

	params := &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Text:    msg.Text,
	}

	result, err := m.client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("Resend send failed: %w", err)
	}

	slog.Info("Email sent via Resend",
		"email_id", result.Id,
		"to", msg.To,
		"subject", msg.Subject,
	)

	return nil
}
