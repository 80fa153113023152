// Command processor runs the Enrichment Engine (spec §4.5) on
// PROCESSOR_CRON, advancing up to MaxArticlesPerRun pending articles one
// phase each tick. Wiring shape adapted from cmd/worker/main.go, sharing
// the producer's ambient stack (bootstrap.*, worker.PipelineConfig) but
// assembling the inference runtime, content fetcher, and per-article
// advisory locker instead of a provider.
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
	"bitcoinnews/internal/infra/fetcher"
	"bitcoinnews/internal/infra/inference"
	"bitcoinnews/internal/infra/worker"
	"bitcoinnews/internal/observability/tracing"
	"bitcoinnews/internal/usecase/enrich"
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
	logger.Info("processor configuration loaded",
		slog.String("processor_cron", pipelineCfg.ProcessorCron),
		slog.String("timezone", pipelineCfg.CronTimezone),
		slog.Int("max_articles_per_run", pipelineCfg.MaxArticlesPerRun))

	inferenceCfg, err := config.LoadInferenceConfig()
	if err != nil {
		logger.Error("failed to load inference configuration", slog.Any("error", err))
		os.Exit(1)
	}
	runner, err := inference.NewRunner(inferenceCfg)
	if err != nil {
		logger.Error("failed to construct inference runner", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("inference runner initialized", slog.String("provider", inferenceCfg.Provider))

	fetchCfg := fetcher.DefaultConfig()
	fetchCfg.MaxContentChars = pipelineCfg.MaxContentChars
	contentFetcher := fetcher.NewHTTPContentFetcher(fetchCfg)

	redisClient := rediskv.NewClient(config.LoadRedisConfig())
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("failed to close redis client", slog.Any("error", err))
		}
	}()
	articleCache := rediskv.New(redisClient)

	articleStore := pgRepo.NewArticleRepo(database)
	articleLocker := pgRepo.NewArticleLock(database)

	model := inferenceCfg.AnthropicModel
	if inferenceCfg.Provider == "openai" {
		model = inferenceCfg.OpenAIModel
	}

	enrichSvc := enrich.New(articleStore, articleCache, contentFetcher, runner, enrich.Config{
		SentimentModel:          model,
		SummaryModel:            model,
		MaxContentFetchAttempts: pipelineCfg.MaxContentFetchAttempts,
		MaxSummaryAttempts:      pipelineCfg.MaxSummaryAttempts,
		MaxArticlesPerRun:       pipelineCfg.MaxArticlesPerRun,
	}).WithLocker(articleLocker)

	notifyChannels := bootstrap.LoadNotifyChannels(logger)
	notifyService := notify.NewService(notifyChannels, pipelineCfg.NotifyMaxConcurrent)

	bootstrap.StartMetricsServer(ctx, logger, pipelineCfg.MetricsAddr, notifyService)

	healthServer := worker.NewHealthServer(pipelineCfg.HealthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	startCron(ctx, logger, enrichSvc, notifyService, pipelineCfg, workerMetrics, healthServer)

	bootstrap.AwaitShutdown(ctx, logger, notifyService)
	logger.Info("processor stopped")
}

func startCron(ctx context.Context, logger *slog.Logger, svc *enrich.Service, notifyService notify.Service, cfg *worker.PipelineConfig, metrics *worker.WorkerMetrics, healthServer *worker.HealthServer) {
	loc, err := time.LoadLocation(cfg.CronTimezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.CronTimezone), slog.Any("error", err))
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.ProcessorCron, func() {
		runEnrichTick(ctx, logger, svc, notifyService, metrics)
	})
	if err != nil {
		logger.Error("failed to register processor cron job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	healthServer.SetReady(true)
	logger.Info("processor started", slog.String("schedule", cfg.ProcessorCron), slog.String("timezone", cfg.CronTimezone))
}

func runEnrichTick(ctx context.Context, logger *slog.Logger, svc *enrich.Service, notifyService notify.Service, metrics *worker.WorkerMetrics) {
	start := time.Now()
	metrics.RecordJobRun("started")

	tickCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	tickCtx, span := tracing.GetTracer().Start(tickCtx, "processor.enrich_tick")
	defer span.End()

	if err := svc.RunTick(tickCtx); err != nil {
		span.SetAttributes(attribute.Bool("error", true))
		logger.Error("enrichment tick failed", slog.Any("error", err))
		metrics.RecordJobRun("failure")
		metrics.RecordJobDuration(time.Since(start).Seconds())
		_ = notifyService.NotifyAlert(ctx, bootstrap.AlertOnError("enrichment tick failed", err))
		return
	}

	metrics.RecordJobRun("success")
	metrics.RecordJobDuration(time.Since(start).Seconds())
	metrics.RecordLastSuccess()
	logger.Info("enrichment tick completed", slog.Duration("duration", time.Since(start)))
}
