package entity

import "github.com/docuflow/engine/constants"

// LineItem is one row of a financial document's itemization.
type LineItem struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// ExtractedRecord is the structured output of one extraction run. It is
// produced fresh by each run and never mutated after return; the cache keeps
// its own copy.
type ExtractedRecord struct {
	// Fields has exactly one entry per schema field, default-typed when the
	// model omitted a value.
	Fields    map[string]any `json:"fields"`
	LineItems []LineItem     `json:"line_items,omitempty"`

	// RawText is the recognized document text; RawOCR the unmodified engine
	// output. Both are retained for audit and citation.
	RawText string `json:"raw_text,omitempty"`
	RawOCR  string `json:"raw_ocr,omitempty"`

	ValidationStatus constants.ValidationStatus `json:"validation_status"`
}

// Clone returns a deep copy so cached records can be handed out without
// aliasing the caller's map.
func (r ExtractedRecord) Clone() ExtractedRecord {
	out := r
	out.Fields = make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	out.LineItems = append([]LineItem(nil), r.LineItems...)
	return out
}
