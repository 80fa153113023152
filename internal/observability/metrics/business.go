package metrics

import "time"

// RecordArticlesIngested records the number of articles inserted by one
// ingestion run against the active provider.
func RecordArticlesIngested(provider string, count int) {
	if count <= 0 {
		return
	}
	ArticlesIngestedTotal.WithLabelValues(provider).Add(float64(count))
}

// RecordArticleEnriched records the terminal outcome of an article's
// enrichment pipeline: "completed" once every phase finished, "error_budget"
// when a retry budget was exhausted and the article was force-completed.
func RecordArticleEnriched(status string) {
	ArticlesEnrichedTotal.WithLabelValues(status).Inc()
}

// RecordSummarizationDuration records the time taken to run the summarize
// phase's inference call.
func RecordSummarizationDuration(duration time.Duration) {
	SummarizationDuration.Observe(duration.Seconds())
}

// RecordContentFetchSuccess records a successful content fetch, along with
// its duration and the fetched content's size.
func RecordContentFetchSuccess(duration time.Duration, size int) {
	ContentFetchAttemptsTotal.WithLabelValues("success").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
	ContentFetchSize.Observe(float64(size))
}

// RecordContentFetchFailed records a failed content fetch attempt.
func RecordContentFetchFailed(duration time.Duration) {
	ContentFetchAttemptsTotal.WithLabelValues("failure").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "insert_batch", "get_pending").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateArticlesTotal updates the gauge tracking ARTICLE_DB's row count.
func UpdateArticlesTotal(count int) {
	ArticlesTotal.Set(float64(count))
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
