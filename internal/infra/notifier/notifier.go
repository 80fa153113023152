// Package notifier provides abstraction for sending operational alerts.
// It defines the Notifier interface which allows different notification mechanisms
// (Discord, Slack, email, etc.) to be used interchangeably through dependency injection.
//
// The package includes implementations for Discord webhooks and a no-op notifier
// for when notifications are disabled.
package notifier

import "context"

// Alert is an operational notification: a circuit breaker tripping, a
// provider going dark, migrations failing to settle. It carries no
// article/source payload because the pipeline's alerting is about its own
// health, not about the news it ingests.
type Alert struct {
	// Title is a short, human-scannable summary (e.g. "content fetch circuit breaker open").
	Title string
	// Message is the longer detail: which component, what triggered it, since when.
	Message string
	// Severity is "warning" or "critical"; it colors the Discord embed and
	// prefixes the Slack message.
	Severity string
}

// Notifier is an interface for sending operational alerts.
// Implementations should handle rate limiting, retries, and error logging internally.
type Notifier interface {
	// NotifyAlert sends an operational alert.
	//
	// Implementations should:
	//   - Generate a unique request ID for tracing
	//   - Apply rate limiting to prevent API abuse
	//   - Retry transient failures with exponential backoff
	//   - Log all attempts with the request ID for debugging
	//   - Respect context cancellation
	NotifyAlert(ctx context.Context, alert Alert) error
}
