package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/docuflow/engine/internal/acquire"
	"github.com/docuflow/engine/internal/async"
	"github.com/docuflow/engine/internal/cache"
	"github.com/docuflow/engine/internal/common"
	"github.com/docuflow/engine/internal/export"
	"github.com/docuflow/engine/internal/llm"
	"github.com/docuflow/engine/internal/llm/openai"
	"github.com/docuflow/engine/internal/ocr"
	"github.com/docuflow/engine/internal/pipeline"
	"github.com/docuflow/engine/internal/repository"
	"github.com/docuflow/engine/internal/server"
	"github.com/docuflow/engine/internal/webhook"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open job store", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer func() { _ = repo.Close() }()

	fetcher := &acquire.AutoFetcher{
		HTTP: acquire.NewHTTPFetcher(nil, cfg.OCR.MaxFileBytes, logger),
		File: acquire.NewFileFetcher(logger),
	}

	engine := ocr.NewEngine(
		ocr.NewTier1Client(cfg.OCR.Tier1URL, nil, logger),
		ocr.NewTier2Client(ocr.Tier2Config{
			URL:          cfg.OCR.Tier2URL,
			Model:        cfg.OCR.Tier2Model,
			Timeout:      cfg.OCR.Tier2Timeout,
			RetryTimeout: cfg.OCR.Tier2RetryTimeout,
		}, nil, logger),
		ocr.Config{
			MinTextLenTier1:   cfg.OCR.MinTextLenTier1,
			MinTextLenTier2:   cfg.OCR.MinTextLenTier2,
			GarbageBurstLimit: cfg.OCR.GarbageBurstLimit,
			FileLimits: ocr.FileLimits{
				MaxBytes:      cfg.OCR.MaxFileBytes,
				MinImageWidth: cfg.OCR.MinImageWidth,
			},
		},
		logger,
	)

	extractor := llm.NewExtractor(openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger), llm.ExtractorConfig{MaxPromptChars: cfg.LLM.MaxPromptChars}, logger)

	notifier := webhook.NewNotifier(webhook.Config{
		MaxAttempts: cfg.Webhook.MaxAttempts,
		BaseDelay:   cfg.Webhook.BaseDelay,
		Timeout:     cfg.Webhook.Timeout,
		Secret:      cfg.Webhook.Secret,
	}, nil, logger)

	var resultCache *cache.ResultCache
	if cfg.Cache.Enabled {
		resultCache = cache.NewResultCache(cfg.Cache.TTL, logger)
		defer resultCache.Close()
	}

	orchestrator := pipeline.NewOrchestrator(
		fetcher, engine, extractor, notifier, resultCache,
		pipeline.Config{
			MaxAttempts:    cfg.Pipeline.MaxAttempts,
			OCRTimeout:     cfg.OCR.StageTimeout,
			ExtractTimeout: cfg.LLM.Timeout,
		},
		logger,
	)

	svc := server.NewService(repo, orchestrator, nil, logger)
	pool := async.NewWorkerPool(svc.HandleTask, logger,
		async.WithWorkers(cfg.Pipeline.Workers),
		async.WithQueueSize(cfg.Pipeline.QueueSize),
	)
	svc.SetQueue(pool)

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: server.NewServer(svc, export.NewService(repo, logger), logger).Router(),
	}

	logger.Info("docuflowd listening", "addr", cfg.Server.HTTPAddr, "db_driver", cfg.Database.Driver)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	pool.Shutdown(shutdownCtx)
}

func openRepository(ctx context.Context, cfg *common.Config, logger *slog.Logger) (repository.JobRepository, error) {
	switch cfg.Database.Driver {
	case "postgres":
		return repository.NewPostgresJobRepository(ctx, cfg.Database.DSN, repository.PoolOptions{
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
			DialTimeout:     cfg.Database.DialTimeout,
		}, logger)
	default:
		return repository.NewSQLiteJobRepository(ctx, cfg.Database.DSN, logger)
	}
}
