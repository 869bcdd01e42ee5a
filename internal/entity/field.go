package entity

// FieldType enumerates the value types a caller may declare in a schema.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldCurrency FieldType = "currency"
	FieldDate     FieldType = "date"
	FieldNumber   FieldType = "number"
	FieldArray    FieldType = "array"
	FieldBoolean  FieldType = "boolean"
)

// Known reports whether t is one of the declared field types.
func (t FieldType) Known() bool {
	switch t {
	case FieldText, FieldCurrency, FieldDate, FieldNumber, FieldArray, FieldBoolean:
		return true
	}
	return false
}

// FieldSpec is one entry of a caller-supplied extraction schema. The schema is
// immutable for the life of a job.
type FieldSpec struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Description string    `json:"description,omitempty"`
}

// Default returns the type-appropriate zero value used when the extractor
// could not produce a value for the field.
func (f FieldSpec) Default() any {
	switch f.Type {
	case FieldNumber, FieldCurrency:
		return 0.0
	case FieldArray:
		return []any{}
	case FieldBoolean:
		return false
	default:
		return ""
	}
}
