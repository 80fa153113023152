// Package postgres implements the storage-facing repository interfaces
// against Postgres via database/sql + the pgx stdlib driver, the same
// combination the base service uses.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"bitcoinnews/internal/domain/entity"
	"bitcoinnews/internal/repository"
)

// ArticleRepo implements repository.ArticleStore (ARTICLE_DB, spec §4.3).
type ArticleRepo struct{ db *sql.DB }

// NewArticleRepo builds an ArticleRepo.
func NewArticleRepo(db *sql.DB) repository.ArticleStore {
	return &ArticleRepo{db: db}
}

// deleteBatchSize bounds how many ids a single DELETE/batched query
// addresses, matching the base service's bulk-delete batching constant.
const deleteBatchSize = 500

func (r *ArticleRepo) InsertBatch(ctx context.Context, articles []*entity.CanonicalArticle) ([]string, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("InsertBatch: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
INSERT INTO articles
	(id, title, description, link, pub_date, source, image_url,
	 sentiment, ai_summary, needs_sentiment, needs_summary,
	 content_timeout, summary_attempts, summary_error, extracted_content,
	 queued_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)
ON CONFLICT (id) DO NOTHING`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("InsertBatch: prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now()
	var inserted []string
	for _, a := range articles {
		res, err := stmt.ExecContext(ctx, a.ID, a.Title, a.Description, a.Link, a.PubDate,
			a.Source, a.ImageURL, string(a.Sentiment), a.AISummary, a.NeedsSentiment, a.NeedsSummary,
			a.ContentTimeout, a.SummaryAttempts, a.SummaryError, a.ExtractedContent, now)
		if err != nil {
			return nil, fmt.Errorf("InsertBatch: exec %s: %w", a.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted = append(inserted, a.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("InsertBatch: commit: %w", err)
	}
	return inserted, nil
}

// Update applies a partial update. Only non-nil fields in ArticleFields
// are written; updated_at always advances.
func (r *ArticleRepo) Update(ctx context.Context, id string, fields repository.ArticleFields) error {
	var sets []string
	var args []interface{}
	idx := 1

	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if fields.Sentiment != nil {
		add("sentiment", string(*fields.Sentiment))
	}
	if fields.AISummary != nil {
		add("ai_summary", *fields.AISummary)
	}
	if fields.NeedsSentiment != nil {
		add("needs_sentiment", *fields.NeedsSentiment)
	}
	if fields.NeedsSummary != nil {
		add("needs_summary", *fields.NeedsSummary)
	}
	if fields.ContentTimeout != nil {
		add("content_timeout", *fields.ContentTimeout)
	}
	if fields.SummaryAttempts != nil {
		add("summary_attempts", *fields.SummaryAttempts)
	}
	if fields.SummaryError != nil {
		add("summary_error", *fields.SummaryError)
	}
	if fields.ExtractedContent != nil {
		add("extracted_content", *fields.ExtractedContent)
	}
	if fields.ProcessedAt != nil && *fields.ProcessedAt {
		add("processed_at", time.Now())
	}

	if len(sets) == 0 {
		return nil
	}
	add("updated_at", time.Now())

	query := fmt.Sprintf("UPDATE articles SET %s WHERE id = $%d", strings.Join(sets, ", "), idx)
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

const selectColumns = `id, title, description, link, pub_date, source, image_url,
	sentiment, ai_summary, needs_sentiment, needs_summary,
	content_timeout, summary_attempts, summary_error, extracted_content,
	queued_at, processed_at, created_at, updated_at`

func scanArticle(row interface{ Scan(...interface{}) error }) (*entity.CanonicalArticle, error) {
	var a entity.CanonicalArticle
	var sentiment string
	if err := row.Scan(&a.ID, &a.Title, &a.Description, &a.Link, &a.PubDate, &a.Source, &a.ImageURL,
		&sentiment, &a.AISummary, &a.NeedsSentiment, &a.NeedsSummary,
		&a.ContentTimeout, &a.SummaryAttempts, &a.SummaryError, &a.ExtractedContent,
		&a.QueuedAt, &a.ProcessedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Sentiment = entity.Sentiment(sentiment)
	return &a, nil
}

func (r *ArticleRepo) GetByID(ctx context.Context, id string) (*entity.CanonicalArticle, error) {
	query := fmt.Sprintf(`SELECT %s FROM articles WHERE id = $1`, selectColumns)
	a, err := scanArticle(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return a, nil
}

// GetPending implements the four-tier ordering of spec §4.3: fresh
// first-scrape candidates, then summarize-ready candidates, then
// everything else, each tier by pub_date DESC.
func (r *ArticleRepo) GetPending(ctx context.Context, limit int) ([]*entity.CanonicalArticle, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM articles
WHERE needs_sentiment = true OR needs_summary = true
ORDER BY
	CASE
		WHEN content_timeout = 0 THEN 0
		WHEN extracted_content IS NOT NULL THEN 1
		ELSE 2
	END,
	pub_date DESC
LIMIT $1`, selectColumns)

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("GetPending: %w", err)
	}
	defer func() { _ = rows.Close() }()

	articles := make([]*entity.CanonicalArticle, 0, limit)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("GetPending: scan: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func (r *ArticleRepo) GetAllIDs(ctx context.Context, limit int) ([]string, error) {
	const query = `SELECT id FROM articles ORDER BY pub_date DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("GetAllIDs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("GetAllIDs: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteByIDs batches deletes so no single statement addresses more than
// deleteBatchSize ids, matching the base service's bulk-delete hygiene.
func (r *ArticleRepo) DeleteByIDs(ctx context.Context, ids []string) error {
	for len(ids) > 0 {
		n := deleteBatchSize
		if n > len(ids) {
			n = len(ids)
		}
		batch := ids[:n]
		ids = ids[n:]

		const query = `DELETE FROM articles WHERE id = ANY($1)`
		if _, err := r.db.ExecContext(ctx, query, pq.Array(batch)); err != nil {
			return fmt.Errorf("DeleteByIDs: %w", err)
		}
	}
	return nil
}

func (r *ArticleRepo) GetCheckpoint(ctx context.Context) (*entity.ProcessingCheckpoint, error) {
	const query = `SELECT current_article_id, articles_processed_count FROM processing_checkpoint WHERE id = true`
	var currentID sql.NullString
	var count int64
	err := r.db.QueryRowContext(ctx, query).Scan(&currentID, &count)
	if err == sql.ErrNoRows {
		return &entity.ProcessingCheckpoint{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetCheckpoint: %w", err)
	}
	return &entity.ProcessingCheckpoint{CurrentArticleID: currentID.String, ArticlesProcessedCount: count}, nil
}

func (r *ArticleRepo) SetCheckpoint(ctx context.Context, cp *entity.ProcessingCheckpoint) error {
	const query = `
INSERT INTO processing_checkpoint (id, current_article_id, articles_processed_count)
VALUES (true, $1, $2)
ON CONFLICT (id) DO UPDATE SET
	current_article_id = EXCLUDED.current_article_id,
	articles_processed_count = EXCLUDED.articles_processed_count`
	_, err := r.db.ExecContext(ctx, query, cp.CurrentArticleID, cp.ArticlesProcessedCount)
	if err != nil {
		return fmt.Errorf("SetCheckpoint: %w", err)
	}
	return nil
}

var _ repository.ArticleStore = (*ArticleRepo)(nil)
