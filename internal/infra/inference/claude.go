package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"bitcoinnews/internal/resilience/circuitbreaker"
	"bitcoinnews/internal/resilience/retry"
)

// ClaudeRunner implements Runner using Anthropic's Messages API.
type ClaudeRunner struct {
	client         anthropic.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	metrics        MetricsRecorder
	timeout        time.Duration
}

// NewClaudeRunner builds a Claude-backed Runner.
func NewClaudeRunner(apiKey string) *ClaudeRunner {
	return &ClaudeRunner{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker: circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		metrics:        NewPrometheusMetrics(),
		timeout:        60 * time.Second,
	}
}

// Run implements Runner.
func (c *ClaudeRunner) Run(ctx context.Context, phase, model string, messages []Message, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	requestID := uuid.New().String()
	var result string

	start := time.Now()
	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		cbResult, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doRun(ctx, requestID, model, messages, maxTokens)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("claude api circuit breaker open, request rejected",
					slog.String("phase", phase),
					slog.String("request_id", requestID),
					slog.String("state", c.circuitBreaker.State().String()))
				return fmt.Errorf("claude api unavailable: circuit breaker open")
			}
			return err
		}
		result = cbResult.(string)
		return nil
	})
	duration := time.Since(start)
	c.metrics.RecordDuration(phase, duration)

	if retryErr != nil {
		c.metrics.RecordError(phase)
		return "", fmt.Errorf("claude inference failed after retries: %w", retryErr)
	}
	return result, nil
}

func (c *ClaudeRunner) doRun(ctx context.Context, requestID, model string, messages []Message, maxTokens int) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
	}
	for _, m := range messages {
		params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
	}

	slog.InfoContext(ctx, "starting inference call",
		slog.String("request_id", requestID),
		slog.String("model", model),
		slog.Int("max_tokens", maxTokens))

	start := time.Now()
	message, err := c.client.Messages.New(ctx, params)
	duration := time.Since(start)

	if err != nil {
		slog.ErrorContext(ctx, "inference call failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("claude api error: %w", err)
	}
	if len(message.Content) == 0 {
		return "", fmt.Errorf("claude api returned empty response")
	}
	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return "", fmt.Errorf("claude api returned unexpected response type")
	}

	slog.InfoContext(ctx, "inference call completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("response_length", len(textBlock.Text)))

	return textBlock.Text, nil
}

var _ Runner = (*ClaudeRunner)(nil)
