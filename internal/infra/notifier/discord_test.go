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

func TestDiscordNotifier_buildEmbedPayload(t *testing.T) {
	t.Run("TC-1: should build valid embed with all fields", func(t *testing.T) {
		n := NewDiscordNotifier(DiscordConfig{Enabled: true, WebhookURL: "https://discord.com/api/webhooks/test", Timeout: 10 * time.Second})
		alert := Alert{Title: "content fetch circuit breaker open", Message: "5 consecutive failures against newsdata.io", Severity: "warning"}

		payload := n.buildEmbedPayload(alert)

		if len(payload.Embeds) != 1 {
			t.Fatalf("expected 1 embed, got %d", len(payload.Embeds))
		}
		embed := payload.Embeds[0]
		if embed.Title != alert.Title {
			t.Errorf("expected title=%q, got %q", alert.Title, embed.Title)
		}
		if embed.Description != alert.Message {
			t.Errorf("expected description=%q, got %q", alert.Message, embed.Description)
		}
		if embed.Color != discordBlueColor {
			t.Errorf("expected warning color=%d, got %d", discordBlueColor, embed.Color)
		}
	})

	t.Run("TC-2: should truncate long message (>4096 chars) with ...", func(t *testing.T) {
		n := NewDiscordNotifier(DiscordConfig{Enabled: true, WebhookURL: "https://discord.com/api/webhooks/test", Timeout: 10 * time.Second})
		alert := Alert{Title: "t", Message: strings.Repeat("a", 5000)}

		payload := n.buildEmbedPayload(alert)

		if len(payload.Embeds[0].Description) != maxDescriptionLength {
			t.Fatalf("expected truncated length %d, got %d", maxDescriptionLength, len(payload.Embeds[0].Description))
		}
		if !strings.HasSuffix(payload.Embeds[0].Description, truncationSuffix) {
			t.Error("expected truncation suffix")
		}
	})

	t.Run("TC-3: critical severity uses red color", func(t *testing.T) {
		n := NewDiscordNotifier(DiscordConfig{Enabled: true, WebhookURL: "https://discord.com/api/webhooks/test", Timeout: 10 * time.Second})
		payload := n.buildEmbedPayload(Alert{Title: "t", Message: "m", Severity: "critical"})
		if payload.Embeds[0].Color != discordRedColor {
			t.Errorf("expected red color=%d, got %d", discordRedColor, payload.Embeds[0].Color)
		}
	})
}

func TestDiscordNotifier_NotifyAlert_Success(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		var payload DiscordWebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewDiscordNotifier(DiscordConfig{Enabled: true, WebhookURL: server.URL, Timeout: 5 * time.Second})
	if err := n.NotifyAlert(context.Background(), Alert{Title: "t", Message: "m"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&requestCount) != 1 {
		t.Errorf("expected 1 request, got %d", requestCount)
	}
}

func TestDiscordNotifier_NotifyAlert_ClientErrorNoRetry(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	n := NewDiscordNotifier(DiscordConfig{Enabled: true, WebhookURL: server.URL, Timeout: 5 * time.Second})
	if err := n.NotifyAlert(context.Background(), Alert{Title: "t", Message: "m"}); err == nil {
		t.Fatal("expected error for 4xx response")
	}
	if atomic.LoadInt32(&requestCount) != 1 {
		t.Errorf("expected no retry on 4xx, got %d requests", requestCount)
	}
}

func TestDiscordNotifier_NotifyAlert_ServerErrorRetriesThenFails(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewDiscordNotifier(DiscordConfig{Enabled: true, WebhookURL: server.URL, Timeout: 5 * time.Second})
	start := time.Now()
	if err := n.NotifyAlert(context.Background(), Alert{Title: "t", Message: "m"}); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if atomic.LoadInt32(&requestCount) != 2 {
		t.Errorf("expected 2 attempts, got %d", requestCount)
	}
	if time.Since(start) < 5*time.Second {
		t.Error("expected retry backoff delay before giving up")
	}
}
