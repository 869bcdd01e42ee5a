package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/docuflow/engine/internal/entity"
)

// BuildJSONSchema renders a caller schema as JSON-Schema (draft 2020-12
// subset). It is sent to the model as an output constraint and used locally
// to judge the reply before coercion.
func BuildJSONSchema(schema []entity.FieldSpec) map[string]any {
	props := make(map[string]any, len(schema)+1)
	for _, f := range schema {
		props[f.Name] = fieldProp(f)
	}
	props["line_items"] = map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"description": map[string]any{"type": "string"},
				"amount":      map[string]any{"type": "number"},
			},
			"required": []string{"description", "amount"},
		},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": true,
		"properties":           props,
	}
}

func fieldProp(f entity.FieldSpec) map[string]any {
	p := map[string]any{}
	switch f.Type {
	case entity.FieldNumber, entity.FieldCurrency:
		// accept both forms; coercion strips symbols from strings
		p["type"] = []string{"number", "string"}
	case entity.FieldArray:
		p["type"] = "array"
	case entity.FieldBoolean:
		p["type"] = []string{"boolean", "string"}
	default:
		p["type"] = "string"
	}
	if f.Description != "" {
		p["description"] = f.Description
	}
	return p
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := compiled.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
