package entity

// Document is a source file acquired for extraction.
type Document struct {
	// Ref is the caller-supplied location (URL or local path).
	Ref string
	// Name is the filename used for extension checks.
	Name string
	// Bytes is the full file content.
	Bytes []byte
}
