package llm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/docuflow/engine/internal/entity"
)

// currencyStripper removes currency symbols, thousands separators and
// whitespace before numeric parsing.
var currencyStripper = strings.NewReplacer(
	"$", "", "€", "", "£", "", "¥", "", ",", "", " ", "",
)

var truthyStrings = map[string]struct{}{
	"true": {}, "1": {}, "yes": {}, "on": {},
}

// CoerceToSchema maps raw model output onto the caller's schema. The result
// always has exactly one entry per schema field; values the model omitted or
// mistyped become type-appropriate defaults. Line items are pulled from the
// conventional "line_items" key when present.
func CoerceToSchema(raw map[string]any, schema []entity.FieldSpec) (map[string]any, []entity.LineItem) {
	fields := make(map[string]any, len(schema))
	for _, spec := range schema {
		v, ok := raw[spec.Name]
		if !ok || v == nil {
			fields[spec.Name] = spec.Default()
			continue
		}
		fields[spec.Name] = coerceValue(v, spec)
	}
	return fields, coerceLineItems(raw["line_items"])
}

func coerceValue(v any, spec entity.FieldSpec) any {
	switch spec.Type {
	case entity.FieldNumber, entity.FieldCurrency:
		if f, ok := toFloat(v); ok {
			return f
		}
		return 0.0
	case entity.FieldArray:
		if arr, ok := v.([]any); ok {
			return arr
		}
		return []any{v}
	case entity.FieldBoolean:
		return toBool(v)
	default:
		return toString(v)
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		s := currencyStripper.Replace(strings.TrimSpace(t))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		_, ok := truthyStrings[strings.ToLower(strings.TrimSpace(t))]
		return ok
	}
	return false
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func coerceLineItems(v any) []entity.LineItem {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	items := make([]entity.LineItem, 0, len(arr))
	for _, e := range arr {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		item := entity.LineItem{Description: toString(m["description"])}
		if f, ok := toFloat(m["amount"]); ok {
			item.Amount = f
		}
		items = append(items, item)
	}
	return items
}
