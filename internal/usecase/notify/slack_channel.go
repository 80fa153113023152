package notify

import (
	"context"

	"bitcoinnews/internal/infra/notifier"
)

// SlackChannel implements the Channel interface for Slack notifications.
// It wraps the notifier.Notifier from the infrastructure layer to provide
// the Channel abstraction for the notification use case.
type SlackChannel struct {
	notifier notifier.Notifier
	enabled  bool
}

// NewSlackChannel creates a new Slack channel with the specified configuration.
//
// If Slack notifications are disabled (config.Enabled = false), a NoOpNotifier
// is used instead to avoid null checks and ensure the Channel interface contract
// is always satisfied.
func NewSlackChannel(config notifier.SlackConfig) *SlackChannel {
	var n notifier.Notifier
	if config.Enabled {
		n = notifier.NewSlackNotifier(config)
	} else {
		n = notifier.NewNoOpNotifier()
	}

	return &SlackChannel{
		notifier: n,
		enabled:  config.Enabled,
	}
}

// Name returns the channel identifier "slack".
func (c *SlackChannel) Name() string {
	return "slack"
}

// IsEnabled returns whether Slack notifications are enabled via configuration.
func (c *SlackChannel) IsEnabled() bool {
	return c.enabled
}

// Send sends alert to Slack.
func (c *SlackChannel) Send(ctx context.Context, alert notifier.Alert) error {
	if !c.enabled {
		return ErrChannelDisabled
	}
	if alert.Title == "" {
		return ErrInvalidAlert
	}
	return c.notifier.NotifyAlert(ctx, alert)
}
