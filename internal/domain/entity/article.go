// Package entity defines the core domain entities and validation logic for the application.
// It contains the canonical article representation produced by provider normalization
// and advanced through the enrichment pipeline, along with validation rules and
// domain-specific errors.
package entity

import "time"

// Sentiment classifies the emotional tone of an article as judged by a provider
// or by the enrichment engine's sentiment inference call.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
	// SentimentUnknown is the default value before classification has run.
	SentimentUnknown Sentiment = "unknown"
)

// Valid reports whether s is one of the four recognized sentiment labels.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative, SentimentUnknown:
		return true
	default:
		return false
	}
}

// CanonicalArticle is the normalized, provider-independent representation of a
// news article as it flows through the store, cache, and enrichment engine.
// It is produced once by a Provider Adapter's normalize step and then mutated
// in place, one enrichment phase at a time, until every phase is terminal.
type CanonicalArticle struct {
	ID          string
	Title       string
	Description string
	Link        string
	PubDate     time.Time
	Source      string
	ImageURL    string

	Sentiment Sentiment
	AISummary string

	// NeedsSentiment is true until Phase 0 has produced a sentiment label
	// (successfully or by falling back to neutral after exhausting retries).
	NeedsSentiment bool
	// NeedsSummary is true until Phase 2 has produced a final summary or
	// given up permanently (see SummaryError).
	NeedsSummary bool

	// ContentTimeout counts consecutive failed content-scrape attempts
	// (Phase 1). It is terminal at MAX_CONTENT_FETCH_ATTEMPTS.
	ContentTimeout int
	// SummaryAttempts counts failed Phase 2 inference calls against
	// MAX_SUMMARY_ATTEMPTS before SummaryError records a permanent failure.
	SummaryAttempts int
	// SummaryError records why Phase 2 stopped retrying, e.g.
	// "no_link", "content_too_short", "ai_error_budget_exhausted".
	SummaryError string

	// ExtractedContent holds the raw, HTML-entity-undecoded text produced
	// by the HTML Content Extractor (Phase 1). It is decoded and
	// whitespace-normalized just before being sent to Phase 2.
	ExtractedContent *string

	QueuedAt    time.Time
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasLink reports whether the article carries a usable source link. Articles
// with no link short-circuit the enrichment pipeline (spec §4.5).
func (a *CanonicalArticle) HasLink() bool {
	return a.Link != ""
}

// ExtractedContentOrEmpty returns the stored extracted content, or "" if
// Phase 1 has not run yet.
func (a *CanonicalArticle) ExtractedContentOrEmpty() string {
	if a.ExtractedContent == nil {
		return ""
	}
	return *a.ExtractedContent
}

// Pending reports whether any enrichment phase still has work to do.
func (a *CanonicalArticle) Pending() bool {
	return a.NeedsSentiment || a.NeedsSummary
}

// NextPhase returns the enrichment phase that should run next for this
// article, or PhaseDone if nothing remains to be advanced.
func (a *CanonicalArticle) NextPhase() Phase {
	switch {
	case a.NeedsSentiment:
		return PhaseSentiment
	case a.ExtractedContent == nil:
		return PhaseContentScrape
	case a.NeedsSummary:
		return PhaseSummarize
	default:
		return PhaseDone
	}
}

// Phase identifies one step of the enrichment state machine.
type Phase int

const (
	PhaseSentiment Phase = iota
	PhaseContentScrape
	PhaseSummarize
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseSentiment:
		return "sentiment"
	case PhaseContentScrape:
		return "content_scrape"
	case PhaseSummarize:
		return "summarize"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// ProcessingCheckpoint is the singleton row tracking overall enrichment
// progress, used for operator visibility and resumability bookkeeping.
type ProcessingCheckpoint struct {
	CurrentArticleID       string
	ArticlesProcessedCount int64
}
