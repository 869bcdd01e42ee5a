package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/docuflow/engine/internal/entity"
)

// Key identifies one (document, schema) pair. Identical content under
// different names hashes the same; a changed schema misses.
type Key struct {
	Document string
	Schema   string
}

func (k Key) String() string { return k.Document + ":" + k.Schema }

// NewKey fingerprints the document bytes and the schema definition.
func NewKey(docBytes []byte, schema []entity.FieldSpec) Key {
	return Key{
		Document: fingerprint(docBytes),
		Schema:   schemaFingerprint(schema),
	}
}

func fingerprint(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func schemaFingerprint(schema []entity.FieldSpec) string {
	// field order is part of the identity; callers that reorder fields
	// get a fresh extraction
	b, _ := json.Marshal(schema)
	return fingerprint(b)
}
