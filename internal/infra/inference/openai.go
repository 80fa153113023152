package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"bitcoinnews/internal/resilience/circuitbreaker"
	"bitcoinnews/internal/resilience/retry"
)

// OpenAIRunner implements Runner using OpenAI's chat completions API.
type OpenAIRunner struct {
	client         *openai.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	metrics        MetricsRecorder
	timeout        time.Duration
}

// NewOpenAIRunner builds an OpenAI-backed Runner.
func NewOpenAIRunner(apiKey string) *OpenAIRunner {
	return &OpenAIRunner{
		client:         openai.NewClient(apiKey),
		circuitBreaker: circuitbreaker.New(circuitbreaker.OpenAIAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		metrics:        NewPrometheusMetrics(),
		timeout:        60 * time.Second,
	}
}

// Run implements Runner.
func (o *OpenAIRunner) Run(ctx context.Context, phase, model string, messages []Message, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var result string
	start := time.Now()
	retryErr := retry.WithBackoff(ctx, o.retryConfig, func() error {
		cbResult, err := o.circuitBreaker.Execute(func() (interface{}, error) {
			return o.doRun(ctx, model, messages, maxTokens)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("openai api circuit breaker open, request rejected",
					slog.String("phase", phase),
					slog.String("state", o.circuitBreaker.State().String()))
				return fmt.Errorf("openai api unavailable: circuit breaker open")
			}
			return err
		}
		result = cbResult.(string)
		return nil
	})
	duration := time.Since(start)
	o.metrics.RecordDuration(phase, duration)

	if retryErr != nil {
		o.metrics.RecordError(phase)
		return "", fmt.Errorf("openai inference failed after retries: %w", retryErr)
	}
	return result, nil
}

func (o *OpenAIRunner) doRun(ctx context.Context, model string, messages []Message, maxTokens int) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: maxTokens,
	}
	for _, m := range messages {
		role := m.Role
		if role == "" {
			role = "user"
		}
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		slog.ErrorContext(ctx, "inference call failed",
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai api returned empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

var _ Runner = (*OpenAIRunner)(nil)
