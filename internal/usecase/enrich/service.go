// Package enrich implements the Enrichment Engine / Processor (spec §4.5):
// a phase state machine that advances each pending article exactly one
// phase per tick, strictly sequentially within the tick, adapted from the
// base service's per-feed-item orchestration with its errgroup-parallel
// fan-out removed — phase advancement mutates shared per-article state
// that must stay crash-resumable, which a fan-out cannot guarantee as
// cheaply as a sequential loop can (spec §5).
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"bitcoinnews/internal/cache"
	"bitcoinnews/internal/domain/entity"
	"bitcoinnews/internal/infra/fetcher"
	"bitcoinnews/internal/infra/inference"
	"bitcoinnews/internal/observability/metrics"
	"bitcoinnews/internal/observability/tracing"
	"bitcoinnews/internal/repository"
)

// ErrArticleLocked is returned by ProcessArticle when a locker is
// configured and another process already holds the article's advisory
// lock (spec §5: the on-demand endpoint and the cron Processor must not
// advance the same article concurrently).
var ErrArticleLocked = errors.New("enrich: article is locked by another process")

// Config holds the pipeline tunables that govern phase retry budgets and
// per-tick throughput. All are fail-open-with-warning settings (spec §9):
// an invalid value falls back to its default rather than refusing to
// start, since none of them gate access to a paid external dependency.
type Config struct {
	SentimentModel          string
	SummaryModel            string
	MaxContentFetchAttempts int
	MaxSummaryAttempts      int
	MaxArticlesPerRun       int
}

// Service advances articles through the enrichment phase state machine.
type Service struct {
	store   repository.ArticleStore
	cache   cache.ArticleCache
	fetcher fetcher.ContentFetcher
	runner  inference.Runner
	cfg     Config
	locker  repository.ArticleLocker
}

// New builds an enrichment Service.
func New(store repository.ArticleStore, kv cache.ArticleCache, cf fetcher.ContentFetcher, runner inference.Runner, cfg Config) *Service {
	return &Service{store: store, cache: kv, fetcher: cf, runner: runner, cfg: cfg}
}

// WithLocker attaches a per-article advisory lock, serializing phase
// advancement across processes. Unset by default, which is fine for tests
// and any deployment where only one process ever mutates a given row.
func (s *Service) WithLocker(l repository.ArticleLocker) *Service {
	s.locker = l
	return s
}

// RunTick loads up to MaxArticlesPerRun pending articles, advances each one
// phase, and updates the processing checkpoint. A single article's failure
// is logged and does not abort the tick.
func (s *Service) RunTick(ctx context.Context) error {
	pending, err := s.store.GetPending(ctx, s.cfg.MaxArticlesPerRun)
	if err != nil {
		return fmt.Errorf("enrich: get pending articles: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	cp, err := s.store.GetCheckpoint(ctx)
	if err != nil {
		return fmt.Errorf("enrich: get checkpoint: %w", err)
	}

	for _, a := range pending {
		if err := s.ProcessArticle(ctx, a); err != nil {
			if errors.Is(err, ErrArticleLocked) {
				slog.DebugContext(ctx, "enrich: article locked by another process, will retry next tick",
					slog.String("article_id", a.ID))
				continue
			}
			slog.ErrorContext(ctx, "enrich: article phase advancement failed",
				slog.String("article_id", a.ID),
				slog.String("phase", a.NextPhase().String()),
				slog.String("error", err.Error()))
			continue
		}
		cp.ArticlesProcessedCount++
		cp.CurrentArticleID = a.ID
	}

	if err := s.store.SetCheckpoint(ctx, cp); err != nil {
		return fmt.Errorf("enrich: set checkpoint: %w", err)
	}
	return nil
}

// ProcessArticle advances a by exactly one enrichment phase. If a locker
// is configured and another process holds a's lock, it returns
// ErrArticleLocked without touching a.
func (s *Service) ProcessArticle(ctx context.Context, a *entity.CanonicalArticle) error {
	if s.locker != nil {
		unlock, ok, err := s.locker.TryLock(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("enrich: acquire article lock: %w", err)
		}
		if !ok {
			return ErrArticleLocked
		}
		defer func() {
			if err := unlock(); err != nil {
				slog.ErrorContext(ctx, "enrich: failed to release article lock",
					slog.String("article_id", a.ID), slog.String("error", err.Error()))
			}
		}()
	}

	phase := a.NextPhase()
	ctx, span := tracing.GetTracer().Start(ctx, "enrich.phase."+phase.String())
	span.SetAttributes(attribute.String("article_id", a.ID))
	defer span.End()

	var err error
	switch phase {
	case entity.PhaseSentiment:
		err = s.runSentiment(ctx, a)
	case entity.PhaseContentScrape:
		if !a.HasLink() {
			err = s.shortCircuitNoLink(ctx, a)
		} else {
			err = s.runContentScrape(ctx, a)
		}
	case entity.PhaseSummarize:
		err = s.runSummarize(ctx, a)
	}
	if err != nil {
		span.SetAttributes(attribute.Bool("error", true))
	}
	return err
}

func boolPtr(b bool) *bool { return &b }

// shortCircuitNoLink terminates an article with no source link immediately
// after sentiment classification (spec §4.5 "no-link short-circuit").
func (s *Service) shortCircuitNoLink(ctx context.Context, a *entity.CanonicalArticle) error {
	reason := "no_link"
	fields := repository.ArticleFields{
		NeedsSummary: boolPtr(false),
		SummaryError: &reason,
	}
	if err := s.store.Update(ctx, a.ID, fields); err != nil {
		return fmt.Errorf("enrich: no-link short-circuit: %w", err)
	}
	a.NeedsSummary = false
	a.SummaryError = reason
	return s.completeIfDone(ctx, a)
}

// runSentiment is Phase 0: classify sentiment with a 10-token inference call.
func (s *Service) runSentiment(ctx context.Context, a *entity.CanonicalArticle) error {
	prompt := fmt.Sprintf(
		"Classify the overall sentiment of this news item as exactly one word: positive, neutral, or negative.\n\nTitle: %s\nDescription: %s",
		a.Title, a.Description)

	resp, err := s.runner.Run(ctx, "sentiment", s.cfg.SentimentModel,
		[]inference.Message{{Role: "user", Content: prompt}}, 10)

	sentiment := entity.SentimentNeutral
	needsSentiment := true
	if err != nil {
		slog.WarnContext(ctx, "sentiment inference call failed, defaulting to neutral and retrying next tick",
			slog.String("article_id", a.ID), slog.String("error", err.Error()))
	} else {
		sentiment = parseSentiment(resp)
		needsSentiment = false
	}

	fields := repository.ArticleFields{
		Sentiment:      &sentiment,
		NeedsSentiment: &needsSentiment,
	}
	if err := s.store.Update(ctx, a.ID, fields); err != nil {
		return fmt.Errorf("enrich: sentiment phase update: %w", err)
	}
	a.Sentiment = sentiment
	a.NeedsSentiment = needsSentiment
	return s.completeIfDone(ctx, a)
}

func parseSentiment(resp string) entity.Sentiment {
	lower := strings.ToLower(resp)
	switch {
	case strings.Contains(lower, "positive"):
		return entity.SentimentPositive
	case strings.Contains(lower, "negative"):
		return entity.SentimentNegative
	case strings.Contains(lower, "neutral"):
		return entity.SentimentNeutral
	default:
		return entity.SentimentUnknown
	}
}

// runContentScrape is Phase 1: fetch the article link and run the HTML
// Content Extractor, or count a failed attempt toward the scrape budget.
// A failure that reaches MaxContentFetchAttempts is terminal: the article
// is marked done with summaryError starting "fetch_failed", never retried
// into Phase 2 with a forced empty body.
func (s *Service) runContentScrape(ctx context.Context, a *entity.CanonicalArticle) error {
	content, err := s.fetcher.FetchContent(ctx, a.Link)
	if err != nil {
		timeout := a.ContentTimeout + 1
		exhausted := timeout >= s.cfg.MaxContentFetchAttempts

		var reason string
		switch {
		case exhausted:
			reason = fmt.Sprintf("fetch_failed (%d/%d)", timeout, s.cfg.MaxContentFetchAttempts)
		case errors.Is(err, context.DeadlineExceeded):
			reason = fmt.Sprintf("fetch_failed (%d/%d)", timeout, s.cfg.MaxContentFetchAttempts)
		default:
			reason = fmt.Sprintf("fetch_error: %s (%d/%d)", err, timeout, s.cfg.MaxContentFetchAttempts)
		}

		fields := repository.ArticleFields{ContentTimeout: &timeout, SummaryError: &reason}
		if exhausted {
			zero := 0
			needsSummary := false
			fields.ContentTimeout = &zero
			fields.NeedsSummary = &needsSummary
			slog.WarnContext(ctx, "content fetch attempts exhausted, terminating article",
				slog.String("article_id", a.ID), slog.Int("attempts", timeout))
		}

		if updErr := s.store.Update(ctx, a.ID, fields); updErr != nil {
			return fmt.Errorf("enrich: content scrape phase update: %w", updErr)
		}
		a.SummaryError = reason
		if exhausted {
			a.ContentTimeout = 0
			a.NeedsSummary = false
			return s.completeIfDone(ctx, a)
		}
		a.ContentTimeout = timeout
		slog.WarnContext(ctx, "content fetch failed, will retry next tick",
			slog.String("article_id", a.ID), slog.Int("attempt", timeout), slog.String("error", err.Error()))
		return nil
	}

	fields := repository.ArticleFields{ExtractedContent: &content}
	if err := s.store.Update(ctx, a.ID, fields); err != nil {
		return fmt.Errorf("enrich: content scrape phase update: %w", err)
	}
	a.ExtractedContent = &content
	return s.completeIfDone(ctx, a)
}

var boilerplatePrefix = regexp.MustCompile(`(?i)^\s*(here(?:'s| is)?\s+(?:a\s+|the\s+)?summary[^:]*:|summary\s*:|the article (?:discusses|describes|states)[^:]*:)\s*`)

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func extractSummary(text string) string {
	if idx := strings.Index(text, "SUMMARY:"); idx >= 0 {
		return strings.TrimSpace(text[idx+len("SUMMARY:"):])
	}
	return strings.TrimSpace(boilerplatePrefix.ReplaceAllString(strings.TrimSpace(text), ""))
}

// runSummarize is Phase 2: decode and normalize the extracted content, then
// run a 1024-token summarization inference call.
func (s *Service) runSummarize(ctx context.Context, a *entity.CanonicalArticle) error {
	decoded := collapseWhitespace(html.UnescapeString(*a.ExtractedContent))

	if utf8.RuneCountInString(decoded) < 100 {
		reason := "content_too_short"
		needsSummary := false
		fields := repository.ArticleFields{SummaryError: &reason, NeedsSummary: &needsSummary}
		if err := s.store.Update(ctx, a.ID, fields); err != nil {
			return fmt.Errorf("enrich: summarize phase update: %w", err)
		}
		a.SummaryError = reason
		a.NeedsSummary = false
		return s.completeIfDone(ctx, a)
	}

	prompt := fmt.Sprintf(
		"Summarize the following article content in under 900 characters. Respond with only the summary, prefixed by \"SUMMARY:\".\n\n%s",
		decoded)
	start := time.Now()
	resp, err := s.runner.Run(ctx, "summarize", s.cfg.SummaryModel,
		[]inference.Message{{Role: "user", Content: prompt}}, 1024)
	metrics.RecordSummarizationDuration(time.Since(start))

	if err != nil {
		attempts := a.SummaryAttempts + 1
		exhausted := attempts >= s.cfg.MaxSummaryAttempts
		reason := fmt.Sprintf("ai_error: %s (%d/%d)", err, attempts, s.cfg.MaxSummaryAttempts)

		fields := repository.ArticleFields{SummaryAttempts: &attempts, SummaryError: &reason}
		if exhausted {
			empty := ""
			needsSummary := false
			fields.NeedsSummary = &needsSummary
			fields.ExtractedContent = &empty
		}
		if updErr := s.store.Update(ctx, a.ID, fields); updErr != nil {
			return fmt.Errorf("enrich: summarize phase update: %w", updErr)
		}
		a.SummaryAttempts = attempts
		a.SummaryError = reason
		if exhausted {
			a.NeedsSummary = false
			empty := ""
			a.ExtractedContent = &empty
			return s.completeIfDone(ctx, a)
		}
		slog.WarnContext(ctx, "summarize inference call failed, will retry next tick",
			slog.String("article_id", a.ID), slog.Int("attempt", attempts))
		return nil
	}

	trimmed := strings.TrimSpace(resp)
	mismatch := strings.HasPrefix(trimmed, "ERROR:") || strings.HasPrefix(trimmed, "CONTENT_MISMATCH")

	var summary string
	if !mismatch {
		summary = extractSummary(trimmed)
		if utf8.RuneCountInString(summary) <= 20 {
			mismatch = true
		}
	}

	if mismatch {
		return s.terminateContentMismatch(ctx, a)
	}

	empty := ""
	zero := 0
	needsSummary := false
	fields := repository.ArticleFields{
		AISummary:        &summary,
		NeedsSummary:     &needsSummary,
		ExtractedContent: &empty,
		ContentTimeout:   &zero,
		SummaryError:     &empty,
	}
	if err := s.store.Update(ctx, a.ID, fields); err != nil {
		return fmt.Errorf("enrich: summarize phase update: %w", err)
	}
	a.AISummary = summary
	a.NeedsSummary = false
	a.ExtractedContent = &empty
	a.ContentTimeout = 0
	a.SummaryError = ""
	return s.completeIfDone(ctx, a)
}

// terminateContentMismatch ends Phase 2 immediately when the model reports
// its response doesn't match the source content: no retry budget applies,
// unlike an ai_error (spec §4.5 "Content-mismatch").
func (s *Service) terminateContentMismatch(ctx context.Context, a *entity.CanonicalArticle) error {
	reason := "content_mismatch"
	empty := ""
	needsSummary := false
	fields := repository.ArticleFields{
		SummaryError:     &reason,
		NeedsSummary:     &needsSummary,
		ExtractedContent: &empty,
	}
	if err := s.store.Update(ctx, a.ID, fields); err != nil {
		return fmt.Errorf("enrich: summarize phase content-mismatch update: %w", err)
	}
	a.SummaryError = reason
	a.NeedsSummary = false
	a.ExtractedContent = &empty
	return s.completeIfDone(ctx, a)
}

// completeIfDone writes processedAt and the ARTICLE_KV cache entry once an
// article has no more pending phases. The cache entry is written exclusively
// here, at completion, never at insertion — a cache hit always means
// "fully enriched" (spec §9, resolving spec.md's open question).
func (s *Service) completeIfDone(ctx context.Context, a *entity.CanonicalArticle) error {
	if a.Pending() {
		return nil
	}

	status := "completed"
	if a.SummaryError != "" {
		status = "degraded"
	}
	metrics.RecordArticleEnriched(status)

	now := time.Now()
	processed := true
	if err := s.store.Update(ctx, a.ID, repository.ArticleFields{ProcessedAt: &processed}); err != nil {
		return fmt.Errorf("enrich: mark processed: %w", err)
	}
	a.ProcessedAt = &now

	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("enrich: marshal completed article: %w", err)
	}
	if err := s.cache.Put(ctx, cache.ArticleKey(a.ID), payload, 0); err != nil {
		slog.ErrorContext(ctx, "enrich: cache write failed for completed article",
			slog.String("article_id", a.ID), slog.String("error", err.Error()))
	}
	return nil
}
