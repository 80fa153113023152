package postgres_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"bitcoinnews/internal/domain/entity"
	pg "bitcoinnews/internal/infra/adapter/persistence/postgres"
	"bitcoinnews/internal/repository"
)

func articleRow(a *entity.CanonicalArticle) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "description", "link", "pub_date", "source", "image_url",
		"sentiment", "ai_summary", "needs_sentiment", "needs_summary",
		"content_timeout", "summary_attempts", "summary_error", "extracted_content",
		"queued_at", "processed_at", "created_at", "updated_at",
	}).AddRow(
		a.ID, a.Title, a.Description, a.Link, a.PubDate, a.Source, a.ImageURL,
		string(a.Sentiment), a.AISummary, a.NeedsSentiment, a.NeedsSummary,
		a.ContentTimeout, a.SummaryAttempts, a.SummaryError, a.ExtractedContent,
		a.QueuedAt, a.ProcessedAt, a.CreatedAt, a.UpdatedAt,
	)
}

func TestArticleRepo_GetByID(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	want := &entity.CanonicalArticle{
		ID: "a1", Title: "Bitcoin rallies", Link: "https://example.com/a1",
		PubDate: now, Sentiment: entity.SentimentPositive,
		QueuedAt: now, CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, description, link, pub_date")).
		WithArgs("a1").
		WillReturnRows(articleRow(want))

	repo := pg.NewArticleRepo(db)
	got, err := repo.GetByID(context.Background(), "a1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.ID != want.ID || got.Sentiment != want.Sentiment {
		t.Errorf("GetByID() = %+v, want %+v", got, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestArticleRepo_GetByID_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, description, link, pub_date")).
		WithArgs("missing").
		WillReturnError(sqlmock.ErrCancelled)

	repo := pg.NewArticleRepo(db)
	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for failed query")
	}
}

func TestArticleRepo_Update_PartialFields(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE articles SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := pg.NewArticleRepo(db)
	sentiment := entity.SentimentNeutral
	err := repo.Update(context.Background(), "a1", repository.ArticleFields{Sentiment: &sentiment})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestArticleRepo_Update_NoRowsIsNotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE articles SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := pg.NewArticleRepo(db)
	needsSummary := false
	err := repo.Update(context.Background(), "missing", repository.ArticleFields{NeedsSummary: &needsSummary})
	if err != entity.ErrNotFound {
		t.Errorf("Update() error = %v, want entity.ErrNotFound", err)
	}
}

func TestArticleRepo_DeleteByIDs_Batches(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	ids := make([]string, 750)
	for i := range ids {
		ids[i] = "id"
	}

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM articles WHERE id = ANY($1)")).
		WillReturnResult(sqlmock.NewResult(0, 500))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM articles WHERE id = ANY($1)")).
		WillReturnResult(sqlmock.NewResult(0, 250))

	repo := pg.NewArticleRepo(db)
	if err := repo.DeleteByIDs(context.Background(), ids); err != nil {
		t.Fatalf("DeleteByIDs() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestArticleRepo_GetCheckpoint_NoRowsReturnsZeroValue(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT current_article_id, articles_processed_count")).
		WillReturnRows(sqlmock.NewRows([]string{"current_article_id", "articles_processed_count"}))

	repo := pg.NewArticleRepo(db)
	cp, err := repo.GetCheckpoint(context.Background())
	if err != nil {
		t.Fatalf("GetCheckpoint() error = %v", err)
	}
	if cp.ArticlesProcessedCount != 0 {
		t.Errorf("ArticlesProcessedCount = %d, want 0", cp.ArticlesProcessedCount)
	}
}
