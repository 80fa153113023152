// Package inference provides the AI inference runtime shared by the two
// enrichment phases that call out to a language model: Phase 0 (sentiment
// classification, max_tokens=10) and Phase 2 (summarization, max_tokens=1024).
// Both phases differ only in prompt and max_tokens, so they share one
// Runner contract and one pair of backend adapters, generalized from the
// base service's per-purpose claude.go/openai.go summarizers.
package inference

import (
	"context"
	"errors"
)

// Message is a single chat turn sent to the model.
type Message struct {
	Role    string
	Content string
}

// Runner executes one inference call against a configured model.
type Runner interface {
	// Run sends messages to model and returns its raw text response.
	// phase labels metrics/logs ("sentiment" or "summarize") and does not
	// affect the call itself. Phase 0 passes max_tokens=10; Phase 2 passes
	// max_tokens=1024.
	Run(ctx context.Context, phase, model string, messages []Message, maxTokens int) (string, error)
}

// ErrUnknownProvider is returned by NewRunner for an unrecognized
// SUMMARIZER_PROVIDER value, or a recognized one missing its API key.
var ErrUnknownProvider = errors.New("inference: unknown or misconfigured provider")
