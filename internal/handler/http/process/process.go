// Package process implements the on-demand enrichment endpoint (spec
// §6.4): GET /process?articleId=<id>[&force][&text[=debug]] runs the same
// sequential phase loop the Processor uses, synchronously, against a
// single article. Handler shape (struct-per-route, respond.JSON envelope)
// is grounded on the base service's internal/handler/http/article/get.go.
package process

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"bitcoinnews/internal/domain/entity"
	"bitcoinnews/internal/infra/fetcher"
	"bitcoinnews/internal/repository"
	"bitcoinnews/internal/usecase/enrich"
)

// maxPhaseLoopIterations bounds the synchronous phase loop: there are
// exactly three phases (sentiment, content scrape, summarize), so three
// advancements always exhaust a's work, loop or no loop.
const maxPhaseLoopIterations = 3

// Handler serves the on-demand enrichment endpoint.
type Handler struct {
	Store   repository.ArticleStore
	Enrich  *enrich.Service
	Fetcher fetcher.ContentFetcher
}

// response is the JSON body describing an article's resulting state.
type response struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	Link             string  `json:"link"`
	Phase            string  `json:"phase"`
	Sentiment        string  `json:"sentiment"`
	AISummary        string  `json:"aiSummary,omitempty"`
	NeedsSentiment   bool    `json:"needsSentiment"`
	NeedsSummary     bool    `json:"needsSummary"`
	ContentTimeout   int     `json:"contentTimeout"`
	SummaryAttempts  int     `json:"summaryAttempts"`
	SummaryError     string  `json:"summaryError,omitempty"`
	HasExtractedText bool    `json:"hasExtractedContent"`
	ProcessedAt      *string `json:"processedAt,omitempty"`
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte(`{"error":"method not allowed"}`))
		return
	}

	articleID := r.URL.Query().Get("articleId")
	if articleID == "" {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"articleId is required"}`))
		return
	}

	ctx := r.Context()
	article, err := h.Store.GetByID(ctx, articleID)
	if errors.Is(err, entity.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"article not found"}`))
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "process: get article failed", slog.String("article_id", articleID), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	_, force := r.URL.Query()["force"]
	if force {
		h.rearm(ctx, article)
	}

	if force || article.Pending() {
		if locked := h.runPhaseLoop(ctx, article); locked {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"article is being processed by another run"}`))
			return
		}
	}

	switch textMode(r) {
	case textModeNone:
		writeJSON(w, article)
	case textModePlain:
		writeText(w, article.ExtractedContentOrEmpty())
	case textModeDebug:
		h.writeDebugText(ctx, w, article)
	}
}

// rearm resets an article's enrichment state so the phase loop below runs
// it fresh, ignoring whatever the normal getPending eligibility would say
// (spec §6.4's "force" resolution: a forced request always reprocesses,
// never just reports the stale state of an already-completed article).
func (h Handler) rearm(ctx context.Context, a *entity.CanonicalArticle) {
	needsSentiment, needsSummary := true, true
	empty := ""
	zero := 0
	fields := repository.ArticleFields{
		NeedsSentiment:   &needsSentiment,
		NeedsSummary:     &needsSummary,
		SummaryError:     &empty,
		ContentTimeout:   &zero,
		SummaryAttempts:  &zero,
		ExtractedContent: nil,
	}
	if err := h.Store.Update(ctx, a.ID, fields); err != nil {
		slog.ErrorContext(ctx, "process: rearm for forced reprocessing failed",
			slog.String("article_id", a.ID), slog.String("error", err.Error()))
	}
	a.NeedsSentiment = true
	a.NeedsSummary = true
	a.SummaryError = ""
	a.ContentTimeout = 0
	a.SummaryAttempts = 0
	a.ExtractedContent = nil
}

// runPhaseLoop advances a through its remaining phases synchronously,
// mirroring the Processor's one-phase-at-a-time advancement. It returns
// true if another process holds a's lock, in which case nothing further
// was attempted.
func (h Handler) runPhaseLoop(ctx context.Context, a *entity.CanonicalArticle) (locked bool) {
	for i := 0; i < maxPhaseLoopIterations && a.Pending(); i++ {
		if err := h.Enrich.ProcessArticle(ctx, a); err != nil {
			if errors.Is(err, enrich.ErrArticleLocked) {
				return true
			}
			slog.ErrorContext(ctx, "process: phase advancement failed",
				slog.String("article_id", a.ID), slog.String("error", err.Error()))
			return false
		}
	}
	return false
}

type textModeKind int

const (
	textModeNone textModeKind = iota
	textModePlain
	textModeDebug
)

func textMode(r *http.Request) textModeKind {
	values, ok := r.URL.Query()["text"]
	if !ok {
		return textModeNone
	}
	for _, v := range values {
		if v == "debug" {
			return textModeDebug
		}
	}
	return textModePlain
}

func (h Handler) writeDebugText(ctx context.Context, w http.ResponseWriter, a *entity.CanonicalArticle) {
	debugFetcher, ok := h.Fetcher.(fetcher.DebugContentFetcher)
	if !ok || !a.HasLink() {
		writeText(w, a.ExtractedContentOrEmpty())
		return
	}
	content, err := debugFetcher.FetchContentDebug(ctx, a.Link)
	if err != nil {
		slog.WarnContext(ctx, "process: debug content fetch failed, falling back to stored content",
			slog.String("article_id", a.ID), slog.String("error", err.Error()))
		writeText(w, a.ExtractedContentOrEmpty())
		return
	}
	writeText(w, content)
}

func writeJSON(w http.ResponseWriter, a *entity.CanonicalArticle) {
	var processedAt *string
	if a.ProcessedAt != nil {
		s := a.ProcessedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		processedAt = &s
	}
	out := response{
		ID:               a.ID,
		Title:            a.Title,
		Link:             a.Link,
		Phase:            a.NextPhase().String(),
		Sentiment:        string(a.Sentiment),
		AISummary:        a.AISummary,
		NeedsSentiment:   a.NeedsSentiment,
		NeedsSummary:     a.NeedsSummary,
		ContentTimeout:   a.ContentTimeout,
		SummaryAttempts:  a.SummaryAttempts,
		SummaryError:     a.SummaryError,
		HasExtractedText: a.ExtractedContent != nil,
		ProcessedAt:      processedAt,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(out); err != nil {
		slog.Error("process: failed to encode response", slog.String("error", err.Error()))
	}
}

func writeText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}
