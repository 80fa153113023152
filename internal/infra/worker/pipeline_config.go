package worker

import (
	"log/slog"
	"time"

	"bitcoinnews/internal/pkg/config"
)

// PipelineConfig holds the fail-open operational tunables shared by the
// Producer and Processor entrypoints (spec §6.6): cron cadence, batch
// sizes, retry budgets, and the ports each process listens on. None of
// these gate access to a paid external dependency, so an invalid value
// falls back to its default with a logged warning rather than refusing to
// start (spec §9's "tunable pipeline knobs" texture), mirroring
// WorkerConfig.
type PipelineConfig struct {
	ProducerCron  string
	ProcessorCron string
	CronTimezone  string

	MaxPages          int
	MaxStoredArticles int
	IDIndexTTL        time.Duration
	DeleteOldArticles bool

	MaxArticlesPerRun       int
	MaxContentFetchAttempts int
	MaxSummaryAttempts      int
	MaxContentChars         int

	NotifyMaxConcurrent int
	HealthAddr          string
	MetricsAddr         string
	HTTPAddr            string
}

// DefaultPipelineConfig returns spec-compliant defaults for every tunable.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ProducerCron:  "*/15 * * * *",
		ProcessorCron: "*/5 * * * *",
		CronTimezone:  "UTC",

		MaxPages:          5,
		MaxStoredArticles: 5000,
		IDIndexTTL:        24 * time.Hour,
		DeleteOldArticles: true,

		MaxArticlesPerRun:       20,
		MaxContentFetchAttempts: 3,
		MaxSummaryAttempts:      3,
		MaxContentChars:         8000,

		NotifyMaxConcurrent: 10,
		HealthAddr:          ":9091",
		MetricsAddr:         ":9090",
		HTTPAddr:            ":8090",
	}
}

// LoadPipelineConfigFromEnv loads PipelineConfig from the environment with
// validation and automatic fallback to defaults on failure (fail-open,
// same strategy as LoadConfigFromEnv). It never returns an error.
func LoadPipelineConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) *PipelineConfig {
	cfg := DefaultPipelineConfig()

	warn := func(field, envKey string, warnings []string) {
		metrics.RecordValidationError(field)
		metrics.RecordFallback(field, "default")
		for _, w := range warnings {
			logger.Warn("pipeline configuration fallback applied",
				slog.String("field", field), slog.String("env_key", envKey), slog.String("warning", w))
		}
	}

	r := config.LoadEnvWithFallback("PRODUCER_CRON", cfg.ProducerCron, config.ValidateCronSchedule)
	cfg.ProducerCron = r.Value.(string)
	if r.FallbackApplied {
		warn("producer_cron", "PRODUCER_CRON", r.Warnings)
	}

	r = config.LoadEnvWithFallback("PROCESSOR_CRON", cfg.ProcessorCron, config.ValidateCronSchedule)
	cfg.ProcessorCron = r.Value.(string)
	if r.FallbackApplied {
		warn("processor_cron", "PROCESSOR_CRON", r.Warnings)
	}

	r = config.LoadEnvWithFallback("CRON_TIMEZONE", cfg.CronTimezone, config.ValidateTimezone)
	cfg.CronTimezone = r.Value.(string)
	if r.FallbackApplied {
		warn("cron_timezone", "CRON_TIMEZONE", r.Warnings)
	}

	ir := config.LoadEnvInt("MAX_PAGES", cfg.MaxPages, func(v int) error { return config.ValidateIntRange(v, 1, 100) })
	cfg.MaxPages = ir.Value.(int)
	if ir.FallbackApplied {
		warn("max_pages", "MAX_PAGES", ir.Warnings)
	}

	ir = config.LoadEnvInt("MAX_STORED_ARTICLES", cfg.MaxStoredArticles, func(v int) error { return config.ValidateIntRange(v, 1, 1_000_000) })
	cfg.MaxStoredArticles = ir.Value.(int)
	if ir.FallbackApplied {
		warn("max_stored_articles", "MAX_STORED_ARTICLES", ir.Warnings)
	}

	dr := config.LoadEnvDuration("ID_INDEX_TTL", cfg.IDIndexTTL, func(d time.Duration) error { return config.ValidatePositiveDuration(d) })
	cfg.IDIndexTTL = dr.Value.(time.Duration)
	if dr.FallbackApplied {
		warn("id_index_ttl", "ID_INDEX_TTL", dr.Warnings)
	}

	br := config.LoadEnvBool("DELETE_OLD_ARTICLES", cfg.DeleteOldArticles)
	cfg.DeleteOldArticles = br.Value.(bool)
	if br.FallbackApplied {
		warn("delete_old_articles", "DELETE_OLD_ARTICLES", br.Warnings)
	}

	ir = config.LoadEnvInt("MAX_ARTICLES_PER_RUN", cfg.MaxArticlesPerRun, func(v int) error { return config.ValidateIntRange(v, 1, 1000) })
	cfg.MaxArticlesPerRun = ir.Value.(int)
	if ir.FallbackApplied {
		warn("max_articles_per_run", "MAX_ARTICLES_PER_RUN", ir.Warnings)
	}

	ir = config.LoadEnvInt("MAX_CONTENT_FETCH_ATTEMPTS", cfg.MaxContentFetchAttempts, func(v int) error { return config.ValidateIntRange(v, 1, 10) })
	cfg.MaxContentFetchAttempts = ir.Value.(int)
	if ir.FallbackApplied {
		warn("max_content_fetch_attempts", "MAX_CONTENT_FETCH_ATTEMPTS", ir.Warnings)
	}

	ir = config.LoadEnvInt("MAX_SUMMARY_ATTEMPTS", cfg.MaxSummaryAttempts, func(v int) error { return config.ValidateIntRange(v, 1, 10) })
	cfg.MaxSummaryAttempts = ir.Value.(int)
	if ir.FallbackApplied {
		warn("max_summary_attempts", "MAX_SUMMARY_ATTEMPTS", ir.Warnings)
	}

	ir = config.LoadEnvInt("MAX_CONTENT_CHARS", cfg.MaxContentChars, func(v int) error { return config.ValidateIntRange(v, 500, 100_000) })
	cfg.MaxContentChars = ir.Value.(int)
	if ir.FallbackApplied {
		warn("max_content_chars", "MAX_CONTENT_CHARS", ir.Warnings)
	}

	ir = config.LoadEnvInt("NOTIFY_MAX_CONCURRENT", cfg.NotifyMaxConcurrent, func(v int) error { return config.ValidateIntRange(v, 1, 100) })
	cfg.NotifyMaxConcurrent = ir.Value.(int)
	if ir.FallbackApplied {
		warn("notify_max_concurrent", "NOTIFY_MAX_CONCURRENT", ir.Warnings)
	}

	cfg.HealthAddr = config.LoadEnvString("HEALTH_ADDR", cfg.HealthAddr)
	cfg.MetricsAddr = config.LoadEnvString("METRICS_ADDR", cfg.MetricsAddr)
	cfg.HTTPAddr = config.LoadEnvString("HTTP_ADDR", cfg.HTTPAddr)

	metrics.RecordLoadTimestamp()
	return &cfg
}
