package inference

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder records per-call inference observability, split by the
// calling phase ("sentiment" or "summarize") so the two very differently
// shaped calls (10-token classification vs 1024-token summary) don't share
// a single misleading histogram.
type MetricsRecorder interface {
	RecordDuration(phase string, d time.Duration)
	RecordError(phase string)
}

// PrometheusMetrics implements MetricsRecorder using Prometheus.
type PrometheusMetrics struct {
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

var (
	promInstance *PrometheusMetrics
	promOnce     sync.Once
)

// NewPrometheusMetrics returns the process-wide inference metrics recorder,
// registering its collectors exactly once.
func NewPrometheusMetrics() *PrometheusMetrics {
	promOnce.Do(func() {
		promInstance = &PrometheusMetrics{
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "inference_call_duration_seconds",
				Help:    "Time taken by an inference call, by phase",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
			}, []string{"phase"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "inference_call_errors_total",
				Help: "Total inference call failures, by phase",
			}, []string{"phase"}),
		}
		if err := prometheus.Register(promInstance.duration); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				promInstance.duration = are.ExistingCollector.(*prometheus.HistogramVec)
			}
		}
		if err := prometheus.Register(promInstance.errors); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				promInstance.errors = are.ExistingCollector.(*prometheus.CounterVec)
			}
		}
	})
	return promInstance
}

func (p *PrometheusMetrics) RecordDuration(phase string, d time.Duration) {
	p.duration.WithLabelValues(phase).Observe(d.Seconds())
}

func (p *PrometheusMetrics) RecordError(phase string) {
	p.errors.WithLabelValues(phase).Inc()
}
