package publish

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"stormcrier/internal/retry"
)

func statusServer(t *testing.T, status int, body string) (*httptest.Server, *[]http.Header) {
	t.Helper()
	var headers []http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/statuses" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		headers = append(headers, r.Header.Clone())
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	return srv, &headers
}

func TestStatusAPIPublish(t *testing.T) {
	srv, headers := statusServer(t, http.StatusOK,
		`{"id":"114114","url":"https://social.example/@bot/114114","created_at":"2025-06-01T12:00:00Z"}`)
	defer srv.Close()

	api := NewStatusAPI(StatusAPIConfig{BaseURL: srv.URL, Token: "token-1"})
	receipt, err := api.Publish(context.Background(), "Forecast for tonight")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if receipt.ID != "114114" || receipt.URL == "" {
		t.Errorf("unexpected receipt: %+v", receipt)
	}

	h := (*headers)[0]
	if got := h.Get("Authorization"); got != "Bearer token-1" {
		t.Errorf("Authorization = %q", got)
	}
	if h.Get("Idempotency-Key") == "" {
		t.Error("missing idempotency key")
	}
}

func TestStatusAPIIdempotencyKeyIsStablePerText(t *testing.T) {
	srv, headers := statusServer(t, http.StatusOK, `{"id":"1"}`)
	defer srv.Close()

	api := NewStatusAPI(StatusAPIConfig{BaseURL: srv.URL, Token: "t"})
	api.Publish(context.Background(), "same text")
	api.Publish(context.Background(), "same text")
	api.Publish(context.Background(), "different text")

	hs := *headers
	if len(hs) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(hs))
	}
	if hs[0].Get("Idempotency-Key") != hs[1].Get("Idempotency-Key") {
		t.Error("retried text must reuse the same idempotency key")
	}
	if hs[0].Get("Idempotency-Key") == hs[2].Get("Idempotency-Key") {
		t.Error("different text must get a different idempotency key")
	}
}

func TestStatusAPIFatalClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		codes  []int
		fatal  bool
	}{
		{name: "unprocessable is fatal by default", status: 422, fatal: true},
		{name: "forbidden is fatal by default", status: 403, fatal: true},
		{name: "server error is transient", status: 500, fatal: false},
		{name: "rate limit is transient", status: 429, fatal: false},
		{name: "injected set overrides default", status: 500, codes: []int{500}, fatal: true},
		{name: "injected set drops default members", status: 422, codes: []int{500}, fatal: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := statusServer(t, tt.status, `{"error":"rejected"}`)
			defer srv.Close()

			api := NewStatusAPI(StatusAPIConfig{BaseURL: srv.URL, Token: "t", FatalCodes: tt.codes})
			_, err := api.Publish(context.Background(), "post")
			if err == nil {
				t.Fatal("expected an error")
			}

			if tt.fatal {
				var ferr *retry.FatalError
				if !errors.As(err, &ferr) {
					t.Fatalf("expected *retry.FatalError, got %T: %v", err, err)
				}
				if ferr.Code != tt.status {
					t.Errorf("FatalError.Code = %d, want %d", ferr.Code, tt.status)
				}
			} else {
				var terr *retry.TransientError
				if !errors.As(err, &terr) {
					t.Fatalf("expected *retry.TransientError, got %T: %v", err, err)
				}
			}
		})
	}
}

func TestStatusAPIConnectionFailureIsTransient(t *testing.T) {
	srv, _ := statusServer(t, http.StatusOK, `{}`)
	srv.Close()

	api := NewStatusAPI(StatusAPIConfig{BaseURL: srv.URL, Token: "t"})
	_, err := api.Publish(context.Background(), "post")
	var terr *retry.TransientError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *retry.TransientError, got %v", err)
	}
}

func TestStatusAPIPayload(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Write([]byte(`{"id":"1"}`))
	}))
	defer srv.Close()

	api := NewStatusAPI(StatusAPIConfig{BaseURL: srv.URL, Token: "t"})
	if _, err := api.Publish(context.Background(), "the post body"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got["status"] != "the post body" {
		t.Errorf("payload status = %q", got["status"])
	}
}
