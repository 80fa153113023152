// Package db owns the ARTICLE_DB schema migration. Schema management stays
// a hand-rolled idempotent CREATE-TABLE-IF-NOT-EXISTS pass, the same shape
// the base service uses, rather than a migration framework — there is only
// ever one version of this schema, so a migration tool's up/down history
// tracking has nothing to track.
package db

import "database/sql"

// MigrateUp creates the articles table and its supporting indexes, plus
// the processing_checkpoint singleton row, if they do not already exist.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS articles (
    id                TEXT PRIMARY KEY,
    title             TEXT NOT NULL,
    description       TEXT,
    link              TEXT,
    pub_date          TIMESTAMPTZ,
    source            TEXT,
    image_url         TEXT,
    sentiment         VARCHAR(10) NOT NULL DEFAULT 'unknown',
    ai_summary        TEXT NOT NULL DEFAULT '',
    needs_sentiment   BOOLEAN NOT NULL DEFAULT FALSE,
    needs_summary     BOOLEAN NOT NULL DEFAULT TRUE,
    content_timeout   INTEGER NOT NULL DEFAULT 0,
    summary_attempts  INTEGER NOT NULL DEFAULT 0,
    summary_error     TEXT NOT NULL DEFAULT '',
    extracted_content TEXT,
    queued_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    processed_at      TIMESTAMPTZ,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	// pending lookup (needs_sentiment OR needs_summary) is the Processor's
	// hot path, run once per tick.
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_articles_pending ON articles(content_timeout) WHERE needs_sentiment OR needs_summary`,
		`CREATE INDEX IF NOT EXISTS idx_articles_pub_date ON articles(pub_date DESC)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS processing_checkpoint (
    id                       BOOLEAN PRIMARY KEY DEFAULT TRUE,
    current_article_id       TEXT,
    articles_processed_count BIGINT NOT NULL DEFAULT 0,
    CONSTRAINT chk_processing_checkpoint_singleton CHECK (id)
)`); err != nil {
		return err
	}

	return nil
}

// MigrateDown drops everything MigrateUp creates. Used only by test setup
// that needs a clean slate between runs.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS processing_checkpoint`,
		`DROP TABLE IF EXISTS articles`,
	}
	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
