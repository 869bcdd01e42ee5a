package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/docuflow/engine/internal/entity"
)

// DefaultMaxPromptChars caps the document text embedded in a prompt.
const DefaultMaxPromptChars = 15000

// BuildSystemPrompt describes the task and the output contract.
func BuildSystemPrompt(schema []entity.FieldSpec) string {
	parts := []string{
		"You are a document data extractor. Return ONLY a JSON object that matches the provided schema.",
		"Extract values exactly as they appear in the document; do not invent data.",
		"Numbers must be plain decimals without currency symbols or thousands separators.",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		"If the document itemizes charges, include them under \"line_items\" as objects with \"description\" and \"amount\".",
		"If a field is not present in the document, omit it.",
	}
	var fields []string
	for _, f := range schema {
		line := fmt.Sprintf("%s (%s)", f.Name, f.Type)
		if f.Description != "" {
			line += ": " + f.Description
		}
		fields = append(fields, line)
	}
	parts = append(parts, "Fields to extract: "+strings.Join(fields, "; ")+".")
	return strings.Join(parts, " ")
}

// BuildUserPrompt assembles the document text, the schema constraint and,
// on retries, the validator's findings from the previous attempt.
func BuildUserPrompt(req ExtractRequest, maxTextLen int) string {
	if maxTextLen <= 0 {
		maxTextLen = DefaultMaxPromptChars
	}
	var b strings.Builder
	if len(req.Feedback) > 0 {
		b.WriteString("Your previous extraction had problems:\n")
		for _, f := range req.Feedback {
			b.WriteString("- ")
			b.WriteString(f)
			b.WriteString("\n")
		}
		b.WriteString("Re-extract carefully, fixing these issues.\n\n")
	}
	b.WriteString("Document text:\n")
	text := req.Text
	// truncate on a rune boundary so the prompt stays valid UTF-8
	if utf8.RuneCountInString(text) > maxTextLen {
		text = string([]rune(text)[:maxTextLen])
	}
	b.WriteString(text)
	b.WriteString("\n\nJSON Schema:\n")
	b.WriteString(mustJSON(BuildJSONSchema(req.Schema)))
	b.WriteString("\n\nReturn ONLY JSON that matches the schema.")
	return b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
