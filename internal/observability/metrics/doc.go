// Package metrics provides the Prometheus collectors and recorders for the
// Producer's ingestion pipeline and the Processor/on-demand enrichment
// pipeline: article counts, content-fetch outcomes, summarization latency,
// and database query timings. All metrics register automatically with the
// Prometheus default registry and are exposed via each process's /metrics
// endpoint (see internal/bootstrap.StartMetricsServer).
//
// Example usage:
//
//	import "bitcoinnews/internal/observability/metrics"
//
//	func (s *Service) Run(ctx context.Context) error {
//	    inserted, err := s.store.InsertBatch(ctx, articles)
//	    metrics.RecordArticlesIngested(s.provider.Name(), len(inserted))
//	}
package metrics
