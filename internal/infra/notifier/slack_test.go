package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestSlackNotifier_buildBlockKitPayload(t *testing.T) {
	t.Run("TC-1: should build valid payload with all fields", func(t *testing.T) {
		n := NewSlackNotifier(SlackConfig{Enabled: true, WebhookURL: "https://hooks.slack.com/services/test", Timeout: 10 * time.Second})
		alert := Alert{Title: "summarizer API key missing", Message: "ANTHROPIC_API_KEY is unset, processor cannot start", Severity: "critical"}

		payload := n.buildBlockKitPayload(alert)

		if len(payload.Blocks) != 2 {
			t.Fatalf("expected 2 blocks (section + context), got %d", len(payload.Blocks))
		}
		if !strings.Contains(payload.Blocks[0].Text.Text, alert.Title) {
			t.Errorf("section block missing title: %q", payload.Blocks[0].Text.Text)
		}
		if !strings.Contains(payload.Blocks[0].Text.Text, alert.Message) {
			t.Errorf("section block missing message: %q", payload.Blocks[0].Text.Text)
		}
		if !strings.Contains(payload.Blocks[1].Elements[0].Text, "critical") {
			t.Errorf("context block missing severity: %q", payload.Blocks[1].Elements[0].Text)
		}
	})

	t.Run("TC-2: should truncate long section text", func(t *testing.T) {
		n := NewSlackNotifier(SlackConfig{Enabled: true, WebhookURL: "https://hooks.slack.com/services/test", Timeout: 10 * time.Second})
		payload := n.buildBlockKitPayload(Alert{Title: "t", Message: strings.Repeat("a", 4000)})
		if len(payload.Blocks[0].Text.Text) > maxSectionTextLength {
			t.Errorf("expected section text truncated to %d, got %d", maxSectionTextLength, len(payload.Blocks[0].Text.Text))
		}
	})
}

func TestSlackNotifier_NotifyAlert_Success(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		var payload SlackWebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	n := NewSlackNotifier(SlackConfig{Enabled: true, WebhookURL: server.URL, Timeout: 5 * time.Second})
	if err := n.NotifyAlert(context.Background(), Alert{Title: "t", Message: "m"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&requestCount) != 1 {
		t.Errorf("expected 1 request, got %d", requestCount)
	}
}

func TestSlackNotifier_NotifyAlert_ClientErrorNoRetry(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	n := NewSlackNotifier(SlackConfig{Enabled: true, WebhookURL: server.URL, Timeout: 5 * time.Second})
	if err := n.NotifyAlert(context.Background(), Alert{Title: "t", Message: "m"}); err == nil {
		t.Fatal("expected error for 4xx response")
	}
	if atomic.LoadInt32(&requestCount) != 1 {
		t.Errorf("expected no retry on 4xx, got %d requests", requestCount)
	}
}
