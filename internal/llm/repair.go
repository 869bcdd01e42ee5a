package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// reTrailingComma matches a comma directly before a closing brace or bracket,
// the most common defect in model-emitted JSON.
var reTrailingComma = regexp.MustCompile(`,\s*([}\]])`)

// RepairJSON parses model output into a generic map, tolerating the usual
// damage: markdown fences, prose around the object, trailing commas. It never
// fails; unparseable input yields an empty map so downstream coercion can
// fill defaults.
func RepairJSON(raw string) (map[string]any, bool) {
	candidates := []string{raw}

	// slice out the outermost object
	if i, j := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); i >= 0 && j > i {
		candidates = append(candidates, raw[i:j+1])
	}
	// a bare array gets wrapped so the result is always a map
	if i, j := strings.Index(raw, "["), strings.LastIndex(raw, "]"); i >= 0 && j > i {
		candidates = append(candidates, `{"items":`+raw[i:j+1]+`}`)
	}

	for pass, c := range candidates {
		if m, ok := tryParse(c); ok {
			return m, pass == 0
		}
		if m, ok := tryParse(reTrailingComma.ReplaceAllString(c, "$1")); ok {
			return m, false
		}
	}
	return map[string]any{}, false
}

func tryParse(s string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}
