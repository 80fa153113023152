package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"bitcoinnews/internal/repository"
)

// ArticleLock implements repository.ArticleLocker over Postgres session-level
// advisory locks (pg_try_advisory_lock/pg_advisory_unlock), keyed by
// hashtext(articleID) since advisory locks take a bigint, not a string.
// Each lock holds a dedicated *sql.Conn for its lifetime, since advisory
// locks are tied to the session that took them — releasing the conn back
// to the pool without unlocking first would leak the lock onto whatever
// later acquires that connection.
type ArticleLock struct{ db *sql.DB }

// NewArticleLock builds an ArticleLock.
func NewArticleLock(db *sql.DB) repository.ArticleLocker {
	return &ArticleLock{db: db}
}

func (l *ArticleLock) TryLock(ctx context.Context, articleID string) (func() error, bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("ArticleLock: get connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, articleID).Scan(&acquired); err != nil {
		_ = conn.Close()
		return nil, false, fmt.Errorf("ArticleLock: try lock: %w", err)
	}
	if !acquired {
		_ = conn.Close()
		return nil, false, nil
	}

	unlock := func() error {
		defer func() { _ = conn.Close() }()
		_, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock(hashtext($1))`, articleID)
		return err
	}
	return unlock, true, nil
}

var _ repository.ArticleLocker = (*ArticleLock)(nil)
