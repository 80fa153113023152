// Command producer runs the Producer / Ingestion Pipeline (spec §4.2) on
// PRODUCER_CRON, paginating the configured provider and keeping ARTICLE_DB
// and ARTICLE_KV's ID_INDEX in sync. Wiring shape adapted from
// cmd/worker/main.go: logger, database, fail-open pipeline tunables,
// fail-closed provider credentials, ops-alert notification service,
// metrics/health servers, then a blocking cron scheduler.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"

	"bitcoinnews/internal/bootstrap"
	"bitcoinnews/internal/config"
	"bitcoinnews/internal/infra/adapter/cache/rediskv"
	pgRepo "bitcoinnews/internal/infra/adapter/persistence/postgres"
	"bitcoinnews/internal/infra/worker"
	"bitcoinnews/internal/observability/tracing"
	"bitcoinnews/internal/provider"
	"bitcoinnews/internal/usecase/ingest"
	"bitcoinnews/internal/usecase/notify"
)

func main() {
	logger := bootstrap.InitLogger()
	database := bootstrap.OpenDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerMetrics := worker.NewWorkerMetrics()
	workerMetrics.MustRegister()
	pipelineCfg := worker.LoadPipelineConfigFromEnv(logger, workerMetrics)
	logger.Info("producer configuration loaded",
		slog.String("producer_cron", pipelineCfg.ProducerCron),
		slog.String("timezone", pipelineCfg.CronTimezone),
		slog.Int("max_pages", pipelineCfg.MaxPages),
		slog.Int("max_stored_articles", pipelineCfg.MaxStoredArticles))

	providerCfg, err := config.LoadProviderConfig()
	if err != nil {
		logger.Error("failed to load provider configuration", slog.Any("error", err))
		os.Exit(1)
	}
	httpClient := bootstrap.NewHTTPClient(15 * time.Second)
	newsProvider, err := provider.Factory(providerCfg, httpClient)
	if err != nil {
		logger.Error("failed to construct news provider", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("news provider initialized", slog.String("provider", newsProvider.Name()))

	redisClient := rediskv.NewClient(config.LoadRedisConfig())
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("failed to close redis client", slog.Any("error", err))
		}
	}()
	articleCache := rediskv.New(redisClient)

	articleStore := pgRepo.NewArticleRepo(database)

	ingestSvc := ingest.New(newsProvider, articleStore, articleCache, ingest.Config{
		MaxPages:          pipelineCfg.MaxPages,
		MaxStoredArticles: pipelineCfg.MaxStoredArticles,
		IDIndexTTL:        pipelineCfg.IDIndexTTL,
		DeleteOldArticles: pipelineCfg.DeleteOldArticles,
	})

	notifyChannels := bootstrap.LoadNotifyChannels(logger)
	notifyService := notify.NewService(notifyChannels, pipelineCfg.NotifyMaxConcurrent)

	bootstrap.StartMetricsServer(ctx, logger, pipelineCfg.MetricsAddr, notifyService)

	healthServer := worker.NewHealthServer(pipelineCfg.HealthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	startCron(ctx, logger, ingestSvc, notifyService, pipelineCfg, workerMetrics, healthServer)

	bootstrap.AwaitShutdown(ctx, logger, notifyService)
	logger.Info("producer stopped")
}

func startCron(ctx context.Context, logger *slog.Logger, svc *ingest.Service, notifyService notify.Service, cfg *worker.PipelineConfig, metrics *worker.WorkerMetrics, healthServer *worker.HealthServer) {
	loc, err := time.LoadLocation(cfg.CronTimezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.CronTimezone), slog.Any("error", err))
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.ProducerCron, func() {
		runIngestTick(ctx, logger, svc, notifyService, cfg, metrics)
	})
	if err != nil {
		logger.Error("failed to register producer cron job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	healthServer.SetReady(true)
	logger.Info("producer started", slog.String("schedule", cfg.ProducerCron), slog.String("timezone", cfg.CronTimezone))
}

func runIngestTick(ctx context.Context, logger *slog.Logger, svc *ingest.Service, notifyService notify.Service, cfg *worker.PipelineConfig, metrics *worker.WorkerMetrics) {
	start := time.Now()
	metrics.RecordJobRun("started")

	tickCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	tickCtx, span := tracing.GetTracer().Start(tickCtx, "producer.ingest_tick")
	defer span.End()

	if err := svc.Run(tickCtx); err != nil {
		span.SetAttributes(attribute.Bool("error", true))
		logger.Error("ingestion tick failed", slog.Any("error", err))
		metrics.RecordJobRun("failure")
		metrics.RecordJobDuration(time.Since(start).Seconds())
		_ = notifyService.NotifyAlert(ctx, bootstrap.AlertOnError("ingestion tick failed", err))
		return
	}

	metrics.RecordJobRun("success")
	metrics.RecordJobDuration(time.Since(start).Seconds())
	metrics.RecordLastSuccess()
	logger.Info("ingestion tick completed", slog.Duration("duration", time.Since(start)))
}
