// Package ingest implements the Producer / Ingestion Pipeline (spec §4.2):
// paginate a Provider Adapter, insert newly seen articles into ARTICLE_DB,
// and keep ARTICLE_KV's ID_INDEX and ARTICLE_DB's membership in sync with
// each other. Adapted from the base service's feed-crawl orchestration,
// narrowed to a single sequential pass (no per-source fan-out: this
// pipeline has exactly one active provider at a time, selected at process
// start) and extended with the ID_INDEX bookkeeping spec.md requires.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"bitcoinnews/internal/cache"
	"bitcoinnews/internal/domain/entity"
	"bitcoinnews/internal/observability/metrics"
	"bitcoinnews/internal/provider"
	"bitcoinnews/internal/repository"
)

// Config holds the pipeline tunables for one ingestion run. All are
// fail-open-with-warning settings (spec §9): an invalid value falls back
// to its default rather than refusing to start.
type Config struct {
	MaxPages          int
	MaxStoredArticles int
	IDIndexTTL        time.Duration
	DeleteOldArticles bool
}

// Service runs the Producer's ingestion pass against one configured
// Provider.
type Service struct {
	provider provider.Provider
	store    repository.ArticleStore
	cache    cache.ArticleCache
	cfg      Config
}

// New builds an ingestion Service.
func New(p provider.Provider, store repository.ArticleStore, kv cache.ArticleCache, cfg Config) *Service {
	return &Service{provider: p, store: store, cache: kv, cfg: cfg}
}

// Run executes the five-step ingestion pipeline (spec §4.2): load the
// known-ID index, paginate the provider with early-exit-on-known-id,
// insert newly seen articles, rewrite the ID_INDEX, and optionally trim
// ARTICLE_DB to the index's membership.
func (s *Service) Run(ctx context.Context) error {
	known, err := s.loadIDIndex(ctx)
	if err != nil {
		return fmt.Errorf("ingest: load id index: %w", err)
	}
	knownSet := make(map[string]struct{}, len(known))
	for _, id := range known {
		knownSet[id] = struct{}{}
	}

	articles, err := s.fetchNewArticles(ctx, knownSet)
	if err != nil {
		return fmt.Errorf("ingest: fetch pages: %w", err)
	}

	if len(articles) == 0 {
		slog.InfoContext(ctx, "ingest: no new articles found", slog.String("provider", s.provider.Name()))
		return nil
	}

	inserted, err := s.store.InsertBatch(ctx, articles)
	if err != nil {
		return fmt.Errorf("ingest: insert batch: %w", err)
	}
	metrics.RecordArticlesIngested(s.provider.Name(), len(inserted))

	updatedIndex := append(append([]string{}, inserted...), known...)
	if len(updatedIndex) > s.cfg.MaxStoredArticles {
		updatedIndex = updatedIndex[:s.cfg.MaxStoredArticles]
	}
	if err := s.writeIDIndex(ctx, updatedIndex); err != nil {
		return fmt.Errorf("ingest: write id index: %w", err)
	}
	metrics.UpdateArticlesTotal(len(updatedIndex))

	slog.InfoContext(ctx, "ingest: run complete",
		slog.String("provider", s.provider.Name()),
		slog.Int("fetched", len(articles)),
		slog.Int("inserted", len(inserted)))

	if !s.cfg.DeleteOldArticles {
		return nil
	}
	return s.trimToIndex(ctx, updatedIndex)
}

// fetchNewArticles paginates the provider up to MaxPages, normalizing
// every article on a page before checking whether that page contained a
// previously known ID — the early-exit happens between pages, never
// mid-page (spec.md's "finish current page" rule).
func (s *Service) fetchNewArticles(ctx context.Context, known map[string]struct{}) ([]*entity.CanonicalArticle, error) {
	var articles []*entity.CanonicalArticle
	pageToken := ""

	for page := 0; page < s.cfg.MaxPages; page++ {
		raw, nextToken, err := s.provider.FetchPage(ctx, pageToken)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}

		sawKnown := false
		for _, r := range raw {
			if _, ok := known[s.provider.ID(r)]; ok {
				sawKnown = true
				continue
			}
			a, err := s.provider.Normalize(r)
			if err != nil {
				slog.WarnContext(ctx, "ingest: skipping article that failed normalization",
					slog.String("provider", s.provider.Name()), slog.String("error", err.Error()))
				continue
			}
			articles = append(articles, a)
		}

		if sawKnown || nextToken == "" {
			break
		}
		pageToken = nextToken
	}

	return articles, nil
}

func (s *Service) loadIDIndex(ctx context.Context) ([]string, error) {
	raw, found, err := s.cache.Get(ctx, cache.IDIndexKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("unmarshal id index: %w", err)
	}
	return ids, nil
}

func (s *Service) writeIDIndex(ctx context.Context, ids []string) error {
	payload, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal id index: %w", err)
	}
	return s.cache.Put(ctx, cache.IDIndexKey, payload, s.cfg.IDIndexTTL)
}

// maxTrimScan bounds how many ARTICLE_DB ids the trim step considers in one
// run; comfortably larger than any realistic ID_INDEX so trimming still
// catches rows orphaned by a shrinking MaxStoredArticles setting.
const maxTrimScan = 100_000

// trimToIndex deletes any ARTICLE_DB row whose id is no longer present in
// the ID_INDEX, keeping the two stores' membership in sync (spec §4.2
// step 5). Deletion is computed by set difference against GetAllIDs rather
// than a join, since ARTICLE_DB and ARTICLE_KV are different backends.
func (s *Service) trimToIndex(ctx context.Context, index []string) error {
	indexed := make(map[string]struct{}, len(index))
	for _, id := range index {
		indexed[id] = struct{}{}
	}

	allIDs, err := s.store.GetAllIDs(ctx, maxTrimScan)
	if err != nil {
		return fmt.Errorf("ingest: get all ids: %w", err)
	}

	var stale []string
	for _, id := range allIDs {
		if _, ok := indexed[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	if err := s.store.DeleteByIDs(ctx, stale); err != nil {
		return fmt.Errorf("ingest: delete stale articles: %w", err)
	}
	slog.InfoContext(ctx, "ingest: trimmed articles no longer in id index", slog.Int("deleted", len(stale)))
	return nil
}
