// Package repository defines the storage-facing interfaces the usecase layer
// depends on. Concrete implementations live under internal/infra/adapter.
package repository

import (
	"context"

	"bitcoinnews/internal/domain/entity"
)

// ArticleFields is a partial-update payload for ArticleStore.Update. Only
// non-nil fields are written; this lets each enrichment phase update just
// the columns it owns without clobbering the others.
type ArticleFields struct {
	Sentiment        *entity.Sentiment
	AISummary        *string
	NeedsSentiment   *bool
	NeedsSummary     *bool
	ContentTimeout   *int
	SummaryAttempts  *int
	SummaryError     *string
	ExtractedContent *string
	ProcessedAt      *bool // true clears to now(), never set to false
}

// ArticleStore is the authoritative relational store for canonical
// articles (ARTICLE_DB, spec §4.3).
type ArticleStore interface {
	// InsertBatch inserts articles that do not already exist (by ID),
	// ignoring conflicts. Returns the IDs actually inserted.
	InsertBatch(ctx context.Context, articles []*entity.CanonicalArticle) ([]string, error)

	// Update applies a partial update to a single article by ID.
	Update(ctx context.Context, id string, fields ArticleFields) error

	// GetByID returns a single article, or entity.ErrNotFound.
	GetByID(ctx context.Context, id string) (*entity.CanonicalArticle, error)

	// GetPending returns up to limit articles still needing enrichment,
	// ordered per spec §4.3's four-tier rule: first-scrape candidates,
	// then summarize-ready candidates, then everything else, each tier
	// by pubDate DESC.
	GetPending(ctx context.Context, limit int) ([]*entity.CanonicalArticle, error)

	// GetAllIDs returns up to limit article IDs, newest first.
	GetAllIDs(ctx context.Context, limit int) ([]string, error)

	// DeleteByIDs removes the given articles, batching deletes so no
	// single statement addresses more than 500 ids.
	DeleteByIDs(ctx context.Context, ids []string) error

	// GetCheckpoint returns the singleton processing checkpoint row,
	// creating it with zero values on first use.
	GetCheckpoint(ctx context.Context) (*entity.ProcessingCheckpoint, error)

	// SetCheckpoint overwrites the singleton processing checkpoint row.
	SetCheckpoint(ctx context.Context, cp *entity.ProcessingCheckpoint) error
}
