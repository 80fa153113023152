// Package notify provides use cases for dispatching operational alerts across
// multiple channels. It implements business logic for sending alerts about
// pipeline health (circuit breakers tripping, providers going dark, failed
// migrations) to various delivery channels (Discord, Slack, ...) with
// circuit breakers, rate limiting, and observability.
package notify

import (
	"context"

	"bitcoinnews/internal/infra/notifier"
)

// Channel represents a notification delivery channel (Discord, Slack, ...).
// Each channel implementation handles its own rate limiting, retries, and
// error handling.
//
// Retry Policy Contract:
//   - Transient failures (5xx, network errors): Retry with exponential backoff (max 2 attempts)
//   - Rate limits (429): Sleep for retry_after duration, then retry (max 3 attempts)
//   - Client errors (4xx except 429): No retry
//   - Context timeout: No retry
//
// Thread Safety:
//   - All methods must be safe for concurrent use by multiple goroutines
type Channel interface {
	// Name returns the human-readable name of the channel (e.g., "discord", "slack").
	Name() string

	// IsEnabled returns true if this channel is enabled via configuration.
	IsEnabled() bool

	// Send sends alert to this channel.
	//
	// Returns:
	//   - ErrChannelDisabled: If Send() called on disabled channel
	//   - ErrInvalidAlert: If alert is missing required fields
	//   - Network/API errors: Wrapped with context
	Send(ctx context.Context, alert notifier.Alert) error
}
