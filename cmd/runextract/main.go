package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/docuflow/engine/constants"
	"github.com/docuflow/engine/internal/acquire"
	"github.com/docuflow/engine/internal/common"
	"github.com/docuflow/engine/internal/entity"
	"github.com/docuflow/engine/internal/llm"
	"github.com/docuflow/engine/internal/llm/openai"
	"github.com/docuflow/engine/internal/ocr"
	"github.com/docuflow/engine/internal/pipeline"
	"github.com/docuflow/engine/internal/repository"
	"github.com/docuflow/engine/internal/webhook"
)

// runextract processes a single document from the command line, records it
// in the sqlite job history and prints the terminal job as JSON. Useful for
// schema development and smoke tests.
func main() {
	var (
		filePath   = flag.String("file", "", "path or URL of the document to extract")
		schemaPath = flag.String("schema", "", "path to a JSON schema file ([{name,type,description}...])")
		webhookURL = flag.String("webhook", "", "optional completion webhook URL")
		dbDSN      = flag.String("db", "", "sqlite DSN for the job history (default from DB_URL)")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *filePath == "" || *schemaPath == "" {
		fmt.Fprintln(os.Stderr, "usage: runextract -file <doc> -schema <schema.json> [-webhook <url>] [-db <dsn>] [-v]")
		os.Exit(2)
	}

	schema, err := loadSchema(*schemaPath)
	if err != nil {
		logger.Error("failed to load schema", "path", *schemaPath, "error", err)
		os.Exit(1)
	}

	os.Exit(run(common.LoadConfig(), logger, *filePath, schema, *webhookURL, *dbDSN))
}

func run(cfg *common.Config, logger *slog.Logger, filePath string, schema []entity.FieldSpec, webhookURL, dbDSN string) int {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if dbDSN == "" {
		dbDSN = cfg.Database.DSN
	}
	repo, err := repository.NewSQLiteJobRepository(ctx, dbDSN, logger)
	if err != nil {
		logger.Error("failed to open job history", "dsn", dbDSN, "error", err)
		return 1
	}
	defer func() { _ = repo.Close() }()

	orchestrator := buildPipeline(cfg, logger)

	job := entity.NewJob(filePath, schema, webhookURL)
	if err := repo.Create(ctx, job); err != nil {
		logger.Error("failed to record job", "job_id", job.ID.String(), "error", err)
		return 1
	}
	if err := orchestrator.Process(ctx, job); err != nil {
		logger.Error("extraction failed", "job_id", job.ID.String(), "error", err)
	}
	if err := repo.Update(ctx, job); err != nil {
		logger.Error("failed to persist job", "job_id", job.ID.String(), "error", err)
	}

	// the webhook fires on a detached goroutine; hold the process open for it
	orchestrator.WaitNotifications()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(job); err != nil {
		logger.Error("failed to encode result", "error", err)
		return 1
	}
	if job.Status == constants.JobStatusFailed {
		return 1
	}
	return 0
}

func loadSchema(path string) ([]entity.FieldSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var schema []entity.FieldSpec
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if len(schema) == 0 {
		return nil, fmt.Errorf("schema has no fields")
	}
	for _, f := range schema {
		if !f.Type.Known() {
			return nil, fmt.Errorf("field %q has unknown type %q", f.Name, f.Type)
		}
	}
	return schema, nil
}

func buildPipeline(cfg *common.Config, logger *slog.Logger) *pipeline.Orchestrator {
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

	// one-shot run: no cache, no queue
	return pipeline.NewOrchestrator(
		fetcher, engine, extractor, notifier, nil,
		pipeline.Config{
			MaxAttempts:    cfg.Pipeline.MaxAttempts,
			OCRTimeout:     cfg.OCR.StageTimeout,
			ExtractTimeout: cfg.LLM.Timeout,
		},
		logger,
	)
}
