// Command ondemand serves the on-demand enrichment endpoint (spec §6.4):
// GET /process?articleId=<id>[&force][&text[=debug]]. It shares the
// Processor's enrichment dependencies but drives them synchronously from
// an HTTP request instead of a cron tick, behind the base service's
// request-ID, timeout, and Prometheus HTTP metrics middleware.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bitcoinnews/internal/bootstrap"
	"bitcoinnews/internal/config"
	hhttp "bitcoinnews/internal/handler/http"
	"bitcoinnews/internal/handler/http/process"
	"bitcoinnews/internal/handler/http/requestid"
	"bitcoinnews/internal/infra/adapter/cache/rediskv"
	pgRepo "bitcoinnews/internal/infra/adapter/persistence/postgres"
	"bitcoinnews/internal/infra/fetcher"
	"bitcoinnews/internal/infra/inference"
	"bitcoinnews/internal/infra/worker"
	"bitcoinnews/internal/observability/tracing"
	"bitcoinnews/internal/usecase/enrich"
	"bitcoinnews/internal/usecase/notify"
)

const requestTimeout = 60 * time.Second

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

	handler := process.Handler{
		Store:   articleStore,
		Enrich:  enrichSvc,
		Fetcher: contentFetcher,
	}

	mux := http.NewServeMux()
	mux.Handle("/process", handler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.Handle("/metrics", hhttp.MetricsHandler())

	var chain http.Handler = mux
	chain = hhttp.MetricsMiddleware(chain)
	chain = tracing.Middleware(chain)
	chain = hhttp.Timeout(requestTimeout)(chain)
	chain = requestid.Middleware(chain)

	server := &http.Server{
		Addr:         pipelineCfg.HTTPAddr,
		Handler:      chain,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	notifyChannels := bootstrap.LoadNotifyChannels(logger)
	notifyService := notify.NewService(notifyChannels, pipelineCfg.NotifyMaxConcurrent)

	healthServer := worker.NewHealthServer(pipelineCfg.HealthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	go func() {
		logger.Info("on-demand server starting", slog.String("addr", pipelineCfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("on-demand server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	healthServer.SetReady(true)

	bootstrap.AwaitShutdown(ctx, logger, notifyService)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("on-demand server shutdown error", slog.Any("error", err))
	}
	logger.Info("on-demand server stopped")
}
