package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bitcoinnews/internal/infra/notifier"
)

func TestDiscordChannel_Send(t *testing.T) {
	t.Run("disabled channel returns ErrChannelDisabled", func(t *testing.T) {
		ch := NewDiscordChannel(notifier.DiscordConfig{Enabled: false})
		if err := ch.Send(context.Background(), notifier.Alert{Title: "t", Message: "m"}); err != ErrChannelDisabled {
			t.Fatalf("expected ErrChannelDisabled, got %v", err)
		}
	})

	t.Run("empty title returns ErrInvalidAlert", func(t *testing.T) {
		ch := NewDiscordChannel(notifier.DiscordConfig{Enabled: true, WebhookURL: "https://discord.com/api/webhooks/x", Timeout: time.Second})
		if err := ch.Send(context.Background(), notifier.Alert{}); err != ErrInvalidAlert {
			t.Fatalf("expected ErrInvalidAlert, got %v", err)
		}
	})

	t.Run("enabled channel delegates to notifier", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		ch := NewDiscordChannel(notifier.DiscordConfig{Enabled: true, WebhookURL: server.URL, Timeout: 5 * time.Second})
		if err := ch.Send(context.Background(), notifier.Alert{Title: "t", Message: "m"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("name is discord", func(t *testing.T) {
		ch := NewDiscordChannel(notifier.DiscordConfig{})
		if ch.Name() != "discord" {
			t.Errorf("expected name=discord, got %q", ch.Name())
		}
	})
}

func TestSlackChannel_Send(t *testing.T) {
	t.Run("disabled channel returns ErrChannelDisabled", func(t *testing.T) {
		ch := NewSlackChannel(notifier.SlackConfig{Enabled: false})
		if err := ch.Send(context.Background(), notifier.Alert{Title: "t", Message: "m"}); err != ErrChannelDisabled {
			t.Fatalf("expected ErrChannelDisabled, got %v", err)
		}
	})

	t.Run("enabled channel delegates to notifier", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		ch := NewSlackChannel(notifier.SlackConfig{Enabled: true, WebhookURL: server.URL, Timeout: 5 * time.Second})
		if err := ch.Send(context.Background(), notifier.Alert{Title: "t", Message: "m"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("name is slack", func(t *testing.T) {
		ch := NewSlackChannel(notifier.SlackConfig{})
		if ch.Name() != "slack" {
			t.Errorf("expected name=slack, got %q", ch.Name())
		}
	})
}
