package ocr

import (
	"context"
	"log/slog"
	"time"

	"github.com/docuflow/engine/constants"
	"github.com/docuflow/engine/internal/common"
	"github.com/docuflow/engine/internal/entity"
	"github.com/docuflow/engine/internal/metrics"
)

// Recognizer turns a document into text. Implementations do not judge
// quality; the engine gates their output.
type Recognizer interface {
	Recognize(ctx context.Context, doc entity.Document) (string, error)
}

// Config tunes the tiered engine.
type Config struct {
	MinTextLenTier1   int
	MinTextLenTier2   int
	GarbageBurstLimit int
	FileLimits        FileLimits
}

// RecognitionResult is the engine's accepted output.
type RecognitionResult struct {
	Text       string
	Engine     string // constants.EngineTier1 | constants.EngineTier2
	Confidence string // advisory hint from the quality gate
	Duration   time.Duration
}

// Engine runs recognition tiers in order and returns the first output that
// passes the quality gate.
type Engine struct {
	tier1  Recognizer
	tier2  Recognizer
	cfg    Config
	logger *slog.Logger
}

func NewEngine(tier1, tier2 Recognizer, cfg Config, logger *slog.Logger) *Engine {
	if cfg.MinTextLenTier1 <= 0 {
		cfg.MinTextLenTier1 = 100
	}
	if cfg.MinTextLenTier2 <= 0 {
		cfg.MinTextLenTier2 = 20
	}
	if cfg.GarbageBurstLimit <= 0 {
		cfg.GarbageBurstLimit = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{tier1: tier1, tier2: tier2, cfg: cfg, logger: logger}
}

// Recognize validates the document, then tries tier 1 and falls back to
// tier 2. A gate rejection and a transport failure are treated alike: move
// to the next tier. When both tiers are exhausted the error is fatal.
func (e *Engine) Recognize(ctx context.Context, doc entity.Document) (RecognitionResult, error) {
	start := time.Now()

	if err := ValidateDocument(doc, e.cfg.FileLimits); err != nil {
		e.logger.Error("ocr.validate.rejected", "file", doc.Name, "error", err)
		return RecognitionResult{}, err
	}

	tier1Reason := e.tryTier(ctx, constants.EngineTier1, e.tier1, doc, GateConfig{
		MinTextLen:        e.cfg.MinTextLenTier1,
		GarbageBurstLimit: e.cfg.GarbageBurstLimit,
	})
	if tier1Reason.err == nil {
		res := tier1Reason.result
		res.Duration = time.Since(start)
		return res, nil
	}

	tier2Reason := e.tryTier(ctx, constants.EngineTier2, e.tier2, doc, GateConfig{
		MinTextLen:        e.cfg.MinTextLenTier2,
		GarbageBurstLimit: e.cfg.GarbageBurstLimit,
	})
	if tier2Reason.err == nil {
		res := tier2Reason.result
		res.Duration = time.Since(start)
		return res, nil
	}

	err := &common.OCRError{
		Tier1Reason: tier1Reason.err.Error(),
		Tier2Reason: tier2Reason.err.Error(),
	}
	e.logger.Error("ocr.recognize.exhausted", "file", doc.Name, "error", err)
	return RecognitionResult{}, err
}

type tierOutcome struct {
	result RecognitionResult
	err    error
}

func (e *Engine) tryTier(ctx context.Context, tier string, rec Recognizer, doc entity.Document, gate GateConfig) tierOutcome {
	if rec == nil {
		return tierOutcome{err: &common.AppError{Code: "OCR_TIER_MISSING", Message: "tier not configured"}}
	}
	start := time.Now()
	text, err := rec.Recognize(ctx, doc)
	if err != nil {
		metrics.IncTierAttempt(tier, "error")
		e.logger.Warn("ocr.tier.failed", "tier", tier, "file", doc.Name, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return tierOutcome{err: err}
	}
	verdict := CheckQuality(text, gate)
	if !verdict.OK {
		metrics.IncTierAttempt(tier, "rejected")
		e.logger.Warn("ocr.tier.rejected", "tier", tier, "file", doc.Name, "reason", verdict.Reason, "elapsed_ms", time.Since(start).Milliseconds())
		return tierOutcome{err: &common.AppError{Code: "OCR_QUALITY", Message: verdict.Reason}}
	}
	metrics.IncTierAttempt(tier, "ok")
	e.logger.Info("ocr.tier.ok",
		"tier", tier,
		"file", doc.Name,
		"text_len", len(text),
		"confidence", verdict.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return tierOutcome{result: RecognitionResult{Text: text, Engine: tier, Confidence: verdict.Confidence}}
}
