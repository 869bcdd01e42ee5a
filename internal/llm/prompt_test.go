package llm

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/engine/internal/entity"
)

func TestBuildUserPrompt_TruncatesOnRuneBoundary(t *testing.T) {
	// two-byte characters: byte-indexed slicing would cut one in half
	text := strings.Repeat("é", 50)
	prompt := BuildUserPrompt(ExtractRequest{
		Text:   text,
		Schema: []entity.FieldSpec{{Name: "total", Type: entity.FieldCurrency}},
	}, 30)

	require.True(t, utf8.ValidString(prompt), "prompt must stay valid UTF-8 after truncation")
	assert.Contains(t, prompt, strings.Repeat("é", 30))
	assert.NotContains(t, prompt, strings.Repeat("é", 31))
}

func TestBuildUserPrompt_ShortTextUntouched(t *testing.T) {
	prompt := BuildUserPrompt(ExtractRequest{
		Text:   "TOTAL 108.25",
		Schema: []entity.FieldSpec{{Name: "total", Type: entity.FieldCurrency}},
	}, 0)
	assert.Contains(t, prompt, "TOTAL 108.25")
}
