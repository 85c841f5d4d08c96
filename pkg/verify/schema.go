// Package verify implements the validating side of the save pipeline: a
// structural gate, signature verification over reconstructed canonical
// bytes, and the full per-submission assessment.
package verify

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// DefaultSchema is the structural contract for submitted save documents.
// It types the tracked gameplay fields and the security block without
// closing the document to game-specific fields.
const DefaultSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"balance":         {"type": "number"},
		"bankBalance":     {"type": "number"},
		"totalEarnings":   {"type": "number"},
		"totalSpent":      {"type": "number"},
		"roundsCompleted": {"type": "number"},
		"clientVersion":   {"type": "string"},
		"security": {
			"type": "object",
			"properties": {
				"schemaVersion":      {"type": "integer"},
				"deviceId":           {"type": "string"},
				"signedAt":           {"type": "integer"},
				"signature":          {"type": "string"},
				"signatureAlgorithm": {"type": "string"},
				"publicKey":          {"type": "string"},
				"flagged":            {"type": "boolean"},
				"legacy":             {"type": "boolean"}
			},
			"required": ["schemaVersion", "deviceId", "signedAt"]
		}
	}
}`

// SchemaGate rejects submissions that are not even shaped like a save
// document, before any of the expensive checks run.
type SchemaGate struct {
	schema *jsonschema.Schema
}

// NewSchemaGate compiles the given schema (DefaultSchema when empty).
func NewSchemaGate(schema string) (*SchemaGate, error) {
	if schema == "" {
		schema = DefaultSchema
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const url = "https://saveguard.schemas.local/save.schema.json"
	if err := c.AddResource(url, strings.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("failed to load save schema: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile save schema: %w", err)
	}
	return &SchemaGate{schema: compiled}, nil
}

// Validate checks a decoded document against the schema.
func (g *SchemaGate) Validate(doc map[string]any) error {
	if err := g.schema.Validate(doc); err != nil {
		return fmt.Errorf("save document failed structural validation: %w", err)
	}
	return nil
}
