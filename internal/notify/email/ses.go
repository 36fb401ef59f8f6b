package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SES implements mail sending via AWS SESv2.
type SES struct {
	client *sesv2.Client
	region string
}

// NewSES creates an SES mailer. Credentials come from the default AWS chain
// (instance role, shared config, environment).
func NewSES(ctx context.Context, region string) *SES {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		slog.Warn("Failed to load AWS config, SES provider will be unavailable", "error", err)
		return &SES{region: region}
	}

	client := sesv2.NewFromConfig(cfg)
	slog.Info("SES mail provider initialized", "region", region)

	return &SES{
		client: client,
		region: region,
	}
}

// Name returns the provider name.
func (m *SES) Name() string {
	return "ses"
}

// IsConfigured returns true if SES is properly configured.
func (m *SES) IsConfigured() bool {
	return m.client != nil
}

// Send sends an email via AWS SES.
func (m *SES) Send(ctx context.Context, msg *Message) error {
	if m.client == nil {
		return fmt.Errorf("SES client not initialized")
	}

	if len(msg.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: &msg.From,
		Destination: &types.Destination{
			ToAddresses: msg.To,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &msg.Subject},
				Body: &types.Body{
					Text: &types.Content{Data: &msg.Text},
				},
			},
		},
	}

	result, err := m.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("SES send failed: %w", err)
	}

	slog.Info("Email sent via SES",
		"message_id", *result.MessageId,
		"to", msg.To,
		"subject", msg.Subject,
	)

	return nil
}
