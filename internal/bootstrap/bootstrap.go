// Package bootstrap collects the ambient wiring shared by the Producer,
// Processor, and on-demand entrypoints: logger/database initialization,
// the ops-alert notification service, and the TLS-hardened HTTP client
// used for every outbound provider/inference/content-fetch call. Adapted
// from cmd/worker/main.go's free functions of the same names, centralized
// here once since three entrypoints now need them instead of one.
package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bitcoinnews/internal/infra/db"
	"bitcoinnews/internal/infra/notifier"
	"bitcoinnews/internal/usecase/notify"
)

// InitLogger builds the structured JSON logger every entrypoint starts
// with, honoring LOG_LEVEL=debug the same way the base service does.
func InitLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// OpenDatabase opens ARTICLE_DB and applies the schema migration.
func OpenDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// NewHTTPClient builds the outbound HTTP client used for provider,
// inference, and content-fetch calls: TLS 1.2+ enforced, pooled
// connections, matching the base service's createHTTPClient.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}

// LoadNotifyChannels wires the Discord/Slack ops-alert channels from
// NOTIFY_DISCORD_WEBHOOK_URL / NOTIFY_SLACK_WEBHOOK_URL (spec §6.6),
// fail-open: an absent, malformed, or wrong-host webhook URL disables
// that channel with a logged warning rather than stopping the process,
// since alerting is a diagnostic aid, not a load-bearing dependency.
func LoadNotifyChannels(logger *slog.Logger) []notify.Channel {
	var channels []notify.Channel

	if cfg := loadDiscordConfig(logger); cfg.Enabled {
		channels = append(channels, notify.NewDiscordChannel(cfg))
		logger.Info("discord ops-alert channel enabled")
	}
	if cfg := loadSlackConfig(logger); cfg.Enabled {
		channels = append(channels, notify.NewSlackChannel(cfg))
		logger.Info("slack ops-alert channel enabled")
	}

	return channels
}

func loadDiscordConfig(logger *slog.Logger) notifier.DiscordConfig {
	webhookURL := os.Getenv("NOTIFY_DISCORD_WEBHOOK_URL")
	if webhookURL == "" {
		return notifier.DiscordConfig{Enabled: false}
	}

	u, err := url.Parse(webhookURL)
	if err != nil {
		logger.Warn("invalid discord webhook url, disabling channel", slog.Any("error", err))
		return notifier.DiscordConfig{Enabled: false}
	}
	if u.Scheme != "https" {
		logger.Warn("discord webhook url must use https, disabling channel")
		return notifier.DiscordConfig{Enabled: false}
	}
	if u.Host != "discord.com" {
		logger.Warn("invalid discord webhook host, disabling channel", slog.String("host", u.Host))
		return notifier.DiscordConfig{Enabled: false}
	}
	if !strings.HasPrefix(u.Path, "/api/webhooks/") {
		logger.Warn("invalid discord webhook path, disabling channel", slog.String("path", u.Path))
		return notifier.DiscordConfig{Enabled: false}
	}

	return notifier.DiscordConfig{Enabled: true, WebhookURL: webhookURL, Timeout: 30 * time.Second}
}

func loadSlackConfig(logger *slog.Logger) notifier.SlackConfig {
	webhookURL := os.Getenv("NOTIFY_SLACK_WEBHOOK_URL")
	if webhookURL == "" {
		return notifier.SlackConfig{Enabled: false}
	}

	u, err := url.Parse(webhookURL)
	if err != nil {
		logger.Warn("invalid slack webhook url, disabling channel", slog.Any("error", err))
		return notifier.SlackConfig{Enabled: false}
	}
	if u.Scheme != "https" {
		logger.Warn("slack webhook url must use https, disabling channel")
		return notifier.SlackConfig{Enabled: false}
	}
	if u.Host != "hooks.slack.com" {
		logger.Warn("invalid slack webhook host, disabling channel", slog.String("host", u.Host))
		return notifier.SlackConfig{Enabled: false}
	}
	if !strings.HasPrefix(u.Path, "/services/") {
		logger.Warn("invalid slack webhook path, disabling channel", slog.String("path", u.Path))
		return notifier.SlackConfig{Enabled: false}
	}

	return notifier.SlackConfig{Enabled: true, WebhookURL: webhookURL, Timeout: 30 * time.Second}
}

// channelHealthResponse mirrors the base service's /health/channels body.
type channelHealthResponse struct {
	Healthy  bool                          `json:"healthy"`
	Channels []notify.ChannelHealthStatus `json:"channels"`
}

// StartMetricsServer exposes /metrics (Prometheus), /health (liveness), and
// /health/channels (ops-alert circuit breaker state), shutting down
// gracefully when ctx is canceled.
func StartMetricsServer(ctx context.Context, logger *slog.Logger, addr string, notifyService notify.Service) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/health/channels", func(w http.ResponseWriter, r *http.Request) {
		statuses := notifyService.GetChannelHealth()
		healthy := true
		for _, s := range statuses {
			if s.Enabled && s.CircuitBreakerOpen {
				healthy = false
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(channelHealthResponse{Healthy: healthy, Channels: statuses})
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
		}
	}()

	return server
}

// AlertOnError builds an ops alert for a failed tick, for entrypoints to
// hand to notify.Service.NotifyAlert on a non-nil error.
func AlertOnError(title string, err error) notifier.Alert {
	return notifier.Alert{
		Title:    title,
		Message:  err.Error(),
		Severity: "critical",
	}
}

// AwaitShutdown blocks until ctx is canceled, then gives the notify
// service's in-flight goroutines up to 10s to drain before returning.
func AwaitShutdown(ctx context.Context, logger *slog.Logger, notifyService notify.Service) {
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := notifyService.Shutdown(shutdownCtx); err != nil {
		logger.Warn("notify service shutdown did not complete cleanly", slog.Any("error", err))
	}
}
