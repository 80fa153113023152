package repository

import "context"

// ArticleLocker serializes enrichment work on a single article across
// processes: a cron-driven Processor tick and a synchronous on-demand HTTP
// request must not advance the same article's phases concurrently (spec
// §5). Implementations are expected to hold the lock on a dedicated
// connection (e.g. a Postgres session-level advisory lock), since the
// lock's lifetime spans exactly one phase advancement, not a transaction.
type ArticleLocker interface {
	// TryLock attempts to acquire an exclusive lock scoped to articleID.
	// ok is false, with a nil unlock and nil error, if another process
	// already holds it. When ok is true, unlock must be called exactly
	// once to release the lock, regardless of what happens afterward.
	TryLock(ctx context.Context, articleID string) (unlock func() error, ok bool, err error)
}
