package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/engine/internal/common"
)

// ExtractorConfig tunes prompt assembly.
type ExtractorConfig struct {
	MaxPromptChars int
}

// Extractor turns recognized text into schema-shaped fields via a Completer.
// Model output is repaired leniently and coerced onto the schema, so the
// returned map always has one entry per field; only a transport or model
// failure is an error.
type Extractor struct {
	completer Completer
	cfg       ExtractorConfig
	logger    *slog.Logger
}

func NewExtractor(completer Completer, cfg ExtractorConfig, logger *slog.Logger) *Extractor {
	if cfg.MaxPromptChars <= 0 {
		cfg.MaxPromptChars = DefaultMaxPromptChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{completer: completer, cfg: cfg, logger: logger}
}

func (e *Extractor) ExtractFields(ctx context.Context, req ExtractRequest) (ExtractResult, error) {
	rid := uuid.New().String()
	start := time.Now()

	e.logger.Info("llm.extract.start",
		"req_id", rid,
		"attempt", req.Attempt,
		"text_len", len(req.Text),
		"schema_fields", len(req.Schema),
		"feedback_items", len(req.Feedback),
	)

	raw, err := e.completer.Complete(ctx, BuildSystemPrompt(req.Schema), BuildUserPrompt(req, e.cfg.MaxPromptChars))
	if err != nil {
		e.logger.Error("llm.extract.model_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return ExtractResult{}, &common.ExtractionError{Op: "complete", Cause: err}
	}

	parsed, clean := RepairJSON(raw)
	if !clean {
		e.logger.Warn("llm.extract.repaired_json", "req_id", rid, "raw_len", len(raw))
	}

	if err := ValidateJSONAgainstSchema(BuildJSONSchema(req.Schema), mustMarshal(parsed)); err != nil {
		// advisory only: coercion below guarantees the output shape
		e.logger.Warn("llm.extract.schema_mismatch", "req_id", rid, "error", err)
	}

	fields, lineItems := CoerceToSchema(parsed, req.Schema)

	e.logger.Info("llm.extract.ok",
		"req_id", rid,
		"attempt", req.Attempt,
		"fields", len(fields),
		"line_items", len(lineItems),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return ExtractResult{Fields: fields, LineItems: lineItems, RawJSON: []byte(raw)}, nil
}

func mustMarshal(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
