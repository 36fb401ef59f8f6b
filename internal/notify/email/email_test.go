package email

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type fakeMailer struct {
	name       string
	configured bool
	err        error
	sent       []*Message
}

func (f *fakeMailer) Name() string       { return f.name }
func (f *fakeMailer) IsConfigured() bool { return f.configured }

func (f *fakeMailer) Send(ctx context.Context, msg *Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func TestNewRegistryFiltersUnconfigured(t *testing.T) {
	reg := NewRegistry(
		&fakeMailer{name: "resend", configured: false},
		&fakeMailer{name: "ses", configured: true},
	)

	if !reg.Configured() {
		t.Fatal("registry with one configured provider should be configured")
	}
	if got, want := reg.List(), []string{"ses"}; !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestRegistrySendUsesFirstProvider(t *testing.T) {
	first := &fakeMailer{name: "resend", configured: true}
	second := &fakeMailer{name: "ses", configured: true}
	reg := NewRegistry(first, second)

	msg := &Message{From: "bot@example.com", To: []string{"ops@example.com"}, Subject: "s", Text: "t"}
	if err := reg.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(first.sent) != 1 {
		t.Errorf("first provider sent %d messages, want 1", len(first.sent))
	}
	if len(second.sent) != 0 {
		t.Errorf("second provider sent %d messages, want 0", len(second.sent))
	}
}

func TestRegistrySendFallsBack(t *testing.T) {
	first := &fakeMailer{name: "resend", configured: true, err: errors.New("quota exceeded")}
	second := &fakeMailer{name: "ses", configured: true}
	reg := NewRegistry(first, second)

	if err := reg.Send(context.Background(), &Message{To: []string{"ops@example.com"}}); err != nil {
		t.Fatalf("Send should succeed via fallback: %v", err)
	}
	if len(second.sent) != 1 {
		t.Errorf("fallback provider sent %d messages, want 1", len(second.sent))
	}
}

func TestRegistrySendAllFail(t *testing.T) {
	lastErr := errors.New("ses rejected")
	reg := NewRegistry(
		&fakeMailer{name: "resend", configured: true, err: errors.New("quota exceeded")},
		&fakeMailer{name: "ses", configured: true, err: lastErr},
	)

	err := reg.Send(context.Background(), &Message{To: []string{"ops@example.com"}})
	if err == nil {
		t.Fatal("expected an error when every provider fails")
	}
	if !errors.Is(err, lastErr) {
		t.Errorf("error should wrap the last provider failure, got %v", err)
	}
}

func TestRegistrySendNoProviders(t *testing.T) {
	reg := NewRegistry(&fakeMailer{name: "resend", configured: false})

	if reg.Configured() {
		t.Error("registry with no configured providers should not be configured")
	}
	if err := reg.Send(context.Background(), &Message{}); err == nil {
		t.Error("expected an error with no providers")
	}
}

func TestResendUnconfiguredWithoutKey(t *testing.T) {
	m := NewResend("")
	if m.IsConfigured() {
		t.Error("Resend without an API key should not be configured")
	}
	if err := m.Send(context.Background(), &Message{To: []string{"ops@example.com"}}); err == nil {
		t.Error("Send on an unconfigured provider should fail")
	}
}
