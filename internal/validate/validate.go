package validate

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/docuflow/engine/constants"
	"github.com/docuflow/engine/internal/entity"
)

// Epsilon is the tolerance for monetary arithmetic comparisons.
const Epsilon = 0.01

// taxDescription is the line-item description excluded from the subtotal sum
// so tax is never counted twice.
const taxDescription = "Tax"

// Report is the validator's verdict on one extraction attempt.
type Report struct {
	Status constants.ValidationStatus

	// Errors are human-readable findings, fed back to the extractor verbatim
	// on the next attempt.
	Errors []string

	// Confidence is the share of schema fields holding non-default values,
	// reduced by a penalty per finding.
	Confidence float32
}

// Valid reports whether the extraction passed every check.
func (r Report) Valid() bool { return r.Status == constants.ValidationValid }

// Check runs completeness and arithmetic checks over an extraction. It never
// errors; a bad extraction yields a needs_review report.
func Check(fields map[string]any, lineItems []entity.LineItem, schema []entity.FieldSpec) Report {
	var findings []string

	findings = append(findings, checkCompleteness(fields, schema)...)
	findings = append(findings, checkArithmetic(fields, lineItems, schema)...)

	report := Report{
		Errors:     findings,
		Confidence: confidence(fields, schema, len(findings)),
	}
	if len(findings) == 0 {
		report.Status = constants.ValidationValid
	} else {
		report.Status = constants.ValidationNeedsReview
	}
	return report
}

// checkCompleteness requires the identity-bearing fields: who the document is
// from and what it amounts to.
func checkCompleteness(fields map[string]any, schema []entity.FieldSpec) []string {
	var findings []string
	if name, ok := findField(schema, isVendorLike); ok && isEmptyValue(fields[name]) {
		findings = append(findings, fmt.Sprintf("required field %q is empty", name))
	}
	if name, ok := findField(schema, isTotalLike); ok && isEmptyValue(fields[name]) {
		findings = append(findings, fmt.Sprintf("required field %q is empty", name))
	}
	return findings
}

// checkArithmetic cross-checks the stated total against the itemization:
// the non-tax line items (or the subtotal when nothing is itemized) plus tax
// must equal the total within Epsilon.
func checkArithmetic(fields map[string]any, lineItems []entity.LineItem, schema []entity.FieldSpec) []string {
	totalName, ok := findField(schema, isTotalLike)
	if !ok {
		return nil
	}
	total, ok := asFloat(fields[totalName])
	if !ok || total == 0 {
		return nil
	}

	var tax float64
	if name, ok := findField(schema, isTaxLike); ok {
		tax, _ = asFloat(fields[name])
	}

	var base float64
	switch {
	case len(lineItems) > 0:
		for _, item := range lineItems {
			if item.Description == taxDescription {
				continue
			}
			base += item.Amount
		}
	default:
		name, ok := findField(schema, isSubtotalLike)
		if !ok {
			return nil
		}
		base, ok = asFloat(fields[name])
		if !ok || base == 0 {
			return nil
		}
	}

	calculated := base + tax
	if math.Abs(calculated-total) > Epsilon {
		return []string{fmt.Sprintf(
			"arithmetic mismatch: items plus tax sum to %.2f but %s is %.2f",
			calculated, totalName, total,
		)}
	}
	return nil
}

func confidence(fields map[string]any, schema []entity.FieldSpec, numErrors int) float32 {
	if len(schema) == 0 {
		return 0
	}
	filled := 0
	for _, spec := range schema {
		if !isDefaultValue(fields[spec.Name], spec) {
			filled++
		}
	}
	score := float32(filled) / float32(len(schema))
	penalty := float32(numErrors) * 0.1
	if penalty > 0.3 {
		penalty = 0.3
	}
	score -= penalty
	if score < 0 {
		score = 0
	}
	return score
}

// Name heuristics: the caller chooses field names, so roles are inferred from
// common vocabulary rather than fixed names.

func isVendorLike(name string) bool {
	return containsAny(name, "vendor", "merchant", "supplier", "payee", "seller", "company")
}

func isTotalLike(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "total") && !strings.Contains(n, "subtotal") &&
		!strings.Contains(n, "sub_total") && !strings.Contains(n, "sub total")
}

func isSubtotalLike(name string) bool {
	return containsAny(name, "subtotal", "sub_total", "sub total")
}

func isTaxLike(name string) bool {
	return containsAny(name, "tax", "vat", "gst")
}

func containsAny(name string, subs ...string) bool {
	n := strings.ToLower(name)
	for _, s := range subs {
		if strings.Contains(n, s) {
			return true
		}
	}
	return false
}

func findField(schema []entity.FieldSpec, match func(string) bool) (string, bool) {
	for _, spec := range schema {
		if match(spec.Name) {
			return spec.Name, true
		}
	}
	return "", false
}

func asFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case float64:
		return t == 0
	case []any:
		return len(t) == 0
	}
	return false
}

func isDefaultValue(v any, spec entity.FieldSpec) bool {
	if v == nil {
		return true
	}
	if arr, ok := v.([]any); ok {
		return len(arr) == 0
	}
	return reflect.DeepEqual(v, spec.Default())
}
