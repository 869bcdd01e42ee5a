package ocr

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/docuflow/engine/constants"
)

// reGarbageBurst matches runs of three or more symbol characters, the
// signature of a recognizer hallucinating on a low-quality scan.
var reGarbageBurst = regexp.MustCompile(`[&^%#@!*]{3,}`)

// GateConfig parameterizes the quality gate per tier.
type GateConfig struct {
	MinTextLen        int
	GarbageBurstLimit int
}

// GateResult carries the verdict for one tier's output.
type GateResult struct {
	OK     bool
	Reason string

	// Confidence is an advisory hint derived from output length. It is not
	// the validator's score.
	Confidence string
}

// CheckQuality judges raw recognizer output. Length is measured in
// characters after trimming whitespace; the garbage check runs on the
// untrimmed text.
func CheckQuality(text string, cfg GateConfig) GateResult {
	trimmed := strings.TrimSpace(text)
	chars := utf8.RuneCountInString(trimmed)
	if chars < cfg.MinTextLen {
		return GateResult{
			OK:     false,
			Reason: fmt.Sprintf("text too short: %d < %d", chars, cfg.MinTextLen),
		}
	}
	if bursts := len(reGarbageBurst.FindAllString(text, -1)); bursts >= cfg.GarbageBurstLimit {
		return GateResult{
			OK:     false,
			Reason: fmt.Sprintf("garbage output: %d symbol bursts", bursts),
		}
	}
	confidence := constants.ConfidenceMedium
	if chars > 200 {
		confidence = constants.ConfidenceHigh
	}
	return GateResult{OK: true, Confidence: confidence}
}
