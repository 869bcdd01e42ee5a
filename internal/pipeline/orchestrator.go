package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/docuflow/engine/constants"
	"github.com/docuflow/engine/internal/acquire"
	"github.com/docuflow/engine/internal/cache"
	"github.com/docuflow/engine/internal/common"
	"github.com/docuflow/engine/internal/entity"
	"github.com/docuflow/engine/internal/llm"
	"github.com/docuflow/engine/internal/metrics"
	"github.com/docuflow/engine/internal/ocr"
	"github.com/docuflow/engine/internal/validate"
	"github.com/docuflow/engine/internal/webhook"
)

// Recognizer is the text-recognition stage contract.
type Recognizer interface {
	Recognize(ctx context.Context, doc entity.Document) (ocr.RecognitionResult, error)
}

// Notifier is the completion-notification contract.
type Notifier interface {
	Notify(ctx context.Context, url string, payload webhook.Payload) error
}

// Config tunes the orchestrator.
type Config struct {
	// MaxAttempts bounds validation-triggered re-extractions. The initial
	// extraction is not counted, so MaxAttempts=3 allows four model calls.
	MaxAttempts int

	OCRTimeout     time.Duration
	ExtractTimeout time.Duration
}

// Orchestrator drives one job through its stages: acquire, recognize,
// extract, validate, and on a validation failure loop back to extraction
// with the findings as feedback. Recognition runs at most once per job.
type Orchestrator struct {
	fetcher   acquire.Fetcher
	engine    Recognizer
	extractor llm.FieldExtractor
	notifier  Notifier
	cache     *cache.ResultCache
	cfg       Config
	logger    *slog.Logger

	notifyWG sync.WaitGroup
}

func NewOrchestrator(
	fetcher acquire.Fetcher,
	engine Recognizer,
	extractor llm.FieldExtractor,
	notifier Notifier,
	resultCache *cache.ResultCache,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.OCRTimeout <= 0 {
		cfg.OCRTimeout = 60 * time.Second
	}
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		fetcher:   fetcher,
		engine:    engine,
		extractor: extractor,
		notifier:  notifier,
		cache:     resultCache,
		cfg:       cfg,
		logger:    logger,
	}
}

// Process takes a job to a terminal state. The job is mutated in place; the
// returned error reflects a fatal pipeline failure already recorded on the
// job, so callers persist the job either way.
func (o *Orchestrator) Process(ctx context.Context, job *entity.Job) error {
	log := o.logger.With("job_id", job.ID.String())
	start := time.Now()
	log.Info("pipeline.start", "document_ref", job.DocumentRef, "schema_fields", len(job.Schema))

	if err := job.MarkProcessing(time.Now()); err != nil {
		return err
	}

	doc, err := o.fetcher.Fetch(ctx, job.DocumentRef)
	if err != nil {
		return o.fail(ctx, job, log, start, err)
	}

	outcome, hit, err := o.runCached(ctx, log, doc, job.Schema)
	if err != nil {
		return o.fail(ctx, job, log, start, err)
	}

	job.Attempts = outcome.attempts
	rec := outcome.record
	switch outcome.status {
	case constants.ValidationValid:
		err = job.Complete(&rec, outcome.engine, outcome.confidence, time.Now())
	default:
		err = job.NeedsReview(&rec, outcome.engine, outcome.confidence, time.Now())
	}
	if err != nil {
		return err
	}

	metrics.IncJob(string(job.Status))
	metrics.ObserveJobDuration(time.Since(start).Seconds())
	log.Info("pipeline.done",
		"status", job.Status,
		"engine", job.EngineUsed,
		"attempts", job.Attempts,
		"confidence", job.Confidence,
		"cache_hit", hit,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	o.dispatchWebhook(ctx, job)
	return nil
}

type outcome struct {
	record     entity.ExtractedRecord
	engine     string
	confidence float32
	status     constants.ValidationStatus
	attempts   int
}

// runCached consults the result cache when one is configured. Fatal failures
// pass through uncached so a later resubmission can retry.
func (o *Orchestrator) runCached(ctx context.Context, log *slog.Logger, doc entity.Document, schema []entity.FieldSpec) (outcome, bool, error) {
	if o.cache == nil {
		out, err := o.run(ctx, log, doc, schema)
		return out, false, err
	}
	key := cache.NewKey(doc.Bytes, schema)
	res, hit, err := o.cache.GetOrCompute(ctx, key, func(ctx context.Context) (cache.CachedResult, error) {
		out, err := o.run(ctx, log, doc, schema)
		if err != nil {
			return cache.CachedResult{}, err
		}
		return cache.CachedResult{
			Record:     out.record,
			Engine:     out.engine,
			Confidence: out.confidence,
			Status:     string(out.status),
			Attempts:   out.attempts,
		}, nil
	})
	if err != nil {
		return outcome{}, false, err
	}
	return outcome{
		record:     res.Record,
		engine:     res.Engine,
		confidence: res.Confidence,
		status:     constants.ValidationStatus(res.Status),
		attempts:   res.Attempts,
	}, hit, nil
}

// run is the uncached pipeline body: recognize once, then the
// extract-validate loop.
func (o *Orchestrator) run(ctx context.Context, log *slog.Logger, doc entity.Document, schema []entity.FieldSpec) (outcome, error) {
	ocrCtx, cancel := context.WithTimeout(ctx, o.cfg.OCRTimeout)
	recognized, err := o.engine.Recognize(ocrCtx, doc)
	cancel()
	if err != nil {
		return outcome{}, err
	}
	log.Info("pipeline.recognized",
		"engine", recognized.Engine,
		"text_len", len(recognized.Text),
		"ocr_confidence", recognized.Confidence,
	)

	var lastResult llm.ExtractResult
	var lastReport validate.Report
	var feedback []string
	attempt := 0
	for {
		extractCtx, cancel := context.WithTimeout(ctx, o.cfg.ExtractTimeout)
		res, err := o.extractor.ExtractFields(extractCtx, llm.ExtractRequest{
			Text:     recognized.Text,
			Schema:   schema,
			Feedback: feedback,
			Attempt:  attempt,
		})
		cancel()
		if err != nil {
			return outcome{}, err
		}

		report := validate.Check(res.Fields, res.LineItems, schema)
		lastResult, lastReport = res, report
		if report.Valid() {
			break
		}
		log.Warn("pipeline.validation_failed",
			"attempt", attempt,
			"errors", report.Errors,
			"confidence", report.Confidence,
		)
		if attempt >= o.cfg.MaxAttempts {
			break
		}
		metrics.IncExtractionRetry()
		feedback = report.Errors
		attempt++
	}

	return outcome{
		record: entity.ExtractedRecord{
			Fields:           lastResult.Fields,
			LineItems:        lastResult.LineItems,
			RawText:          recognized.Text,
			RawOCR:           recognized.Text,
			ValidationStatus: lastReport.Status,
		},
		engine:     recognized.Engine,
		confidence: lastReport.Confidence,
		status:     lastReport.Status,
		attempts:   attempt,
	}, nil
}

// fail records a fatal error on the job. Validation and recognition errors
// are expected operational outcomes, not programming errors.
func (o *Orchestrator) fail(ctx context.Context, job *entity.Job, log *slog.Logger, start time.Time, cause error) error {
	var fv *common.FileValidationError
	var ocrErr *common.OCRError
	switch {
	case errors.As(cause, &fv):
		log.Warn("pipeline.rejected", "error", cause)
	case errors.As(cause, &ocrErr):
		log.Warn("pipeline.ocr_exhausted", "error", cause)
	default:
		log.Error("pipeline.failed", "error", cause)
	}
	if err := job.Fail(cause, time.Now()); err != nil {
		return err
	}
	metrics.IncJob(string(job.Status))
	metrics.ObserveJobDuration(time.Since(start).Seconds())
	o.dispatchWebhook(ctx, job)
	return cause
}

// dispatchWebhook fires the notification on a detached context so delivery
// retries survive the job's own deadline.
func (o *Orchestrator) dispatchWebhook(ctx context.Context, job *entity.Job) {
	if o.notifier == nil || job.WebhookURL == "" {
		return
	}
	payload := webhook.Payload{
		JobID:                 job.ID.String(),
		Status:                string(job.Status),
		ProcessingTimeSeconds: job.ProcessingSeconds(),
		EngineUsed:            job.EngineUsed,
		Data:                  job.Result,
		Timestamp:             time.Now().UTC(),
	}
	if job.ErrorMessage != nil {
		payload.Error = *job.ErrorMessage
	}
	o.notifyWG.Add(1)
	go func() {
		defer o.notifyWG.Done()
		// best effort: a delivery failure never changes the job outcome
		_ = o.notifier.Notify(context.WithoutCancel(ctx), job.WebhookURL, payload)
	}()
}

// WaitNotifications blocks until every dispatched delivery has finished.
// One-shot callers use it so the process does not exit mid-delivery.
func (o *Orchestrator) WaitNotifications() {
	o.notifyWG.Wait()
}
