package llm

import (
	"context"

	"github.com/docuflow/engine/internal/entity"
)

// Completer is the single model dependency of the extractor: one prompt in,
// raw completion text out.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ExtractRequest carries one extraction attempt's input.
type ExtractRequest struct {
	Text   string
	Schema []entity.FieldSpec

	// Feedback holds the validator's findings from the previous attempt.
	// Empty on the first attempt.
	Feedback []string
	Attempt  int
}

// ExtractResult is a structurally guaranteed extraction: Fields has exactly
// one entry per schema field.
type ExtractResult struct {
	Fields    map[string]any
	LineItems []entity.LineItem
	RawJSON   []byte
}

// FieldExtractor is the interface the pipeline depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (ExtractResult, error)
}
