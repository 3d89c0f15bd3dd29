// Package schema defines the two output schemas (simple and crew-first) and
// gates untrusted model output through JSON-Schema validation plus structural
// type guards. No extraction result crosses the orchestrator boundary without
// passing through Verify.
package schema

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/setflow/callsheet-cli/internal/model"
)

// SimpleSchema returns the JSON-Schema (draft 2020-12 subset) for the simple
// extraction shape, as a generic map. It doubles as the response-schema
// constraint sent to Gemini.
func SimpleSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"date":        map[string]any{"type": "string", "minLength": 1},
			"projectName": map[string]any{"type": "string"},
			"productionCompanies": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"locations": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []string{"date", "projectName", "productionCompanies", "locations"},
	}
}

// CrewFirstSchema returns the JSON-Schema for the rich crew-first shape.
func CrewFirstSchema() map[string]any {
	types := model.LocationTypes()
	enum := make([]string, len(types))
	for i, t := range types {
		enum[i] = string(t)
	}

	location := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"location_type":     map[string]any{"type": "string", "enum": enum},
			"name":              map[string]any{"type": "string"},
			"address":           map[string]any{"type": "string", "minLength": 1},
			"formatted_address": map[string]any{"type": "string"},
			"latitude":          map[string]any{"type": "number"},
			"longitude":         map[string]any{"type": "number"},
			"notes": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"maxItems": 2,
			},
			"confidence": map[string]any{"type": "number"},
		},
		"required": []string{"location_type", "address", "notes", "confidence"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"version":           map[string]any{"type": "string", "const": model.CrewFirstVersion},
			"date":              map[string]any{"type": "string", "minLength": 1},
			"projectName":       map[string]any{"type": "string"},
			"productionCompany": map[string]any{"type": "string"},
			"motiv":             map[string]any{"type": "string"},
			"episode":           map[string]any{"type": "string"},
			"shootingDay":       map[string]any{"type": "string"},
			"generalCallTime":   map[string]any{"type": "string"},
			"locations":         map[string]any{"type": "array", "items": location},
			"rutas":             map[string]any{"type": "array"},
		},
		"required": []string{"version", "date", "projectName", "locations", "rutas"},
	}
}

var (
	compileOnce     sync.Once
	simpleSchema    *jsonschema.Schema
	crewFirstSchema *jsonschema.Schema
)

func compiled() (*jsonschema.Schema, *jsonschema.Schema) {
	compileOnce.Do(func() {
		simpleSchema = mustCompile("simple.json", SimpleSchema())
		crewFirstSchema = mustCompile("crewfirst.json", CrewFirstSchema())
	})
	return simpleSchema, crewFirstSchema
}

func mustCompile(name string, m map[string]any) *jsonschema.Schema {
	b, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		panic(err)
	}
	return compiler.MustCompile(name)
}
