package llm

import (
	"encoding/json"
	"testing"

	"github.com/google/generative-ai-go/genai"
)

func TestConvertSchemaToGemini(t *testing.T) {
	raw := json.RawMessage(`{
		"type": "object",
		"properties": {
			"state": {"type": "string", "description": "Two-letter US state code."},
			"latitude": {"type": "number"},
			"count": {"type": "integer"},
			"verbose": {"type": "boolean"},
			"tags": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["state"]
	}`)

	schema := convertSchemaToGemini(raw)
	if schema.Type != genai.TypeObject {
		t.Fatalf("Expected an object schema, got %v", schema.Type)
	}
	if len(schema.Required) != 1 || schema.Required[0] != "state" {
		t.Errorf("Expected required [state], got %v", schema.Required)
	}

	cases := map[string]genai.Type{
		"state":    genai.TypeString,
		"latitude": genai.TypeNumber,
		"count":    genai.TypeInteger,
		"verbose":  genai.TypeBoolean,
		"tags":     genai.TypeArray,
	}
	for name, want := range cases {
		prop, ok := schema.Properties[name]
		if !ok {
			t.Errorf("Expected property '%s' in the converted schema", name)
			continue
		}
		if prop.Type != want {
			t.Errorf("Property '%s': expected type %v, got %v", name, want, prop.Type)
		}
	}
	if schema.Properties["state"].Description == "" {
		t.Error("Expected the property description to carry over")
	}
	if items := schema.Properties["tags"].Items; items == nil || items.Type != genai.TypeString {
		t.Error("Expected the array item type to carry over")
	}
}

func TestConvertSchemaToGeminiFallback(t *testing.T) {
	// Absent or unparseable schemas degrade to a bare object.
	for _, raw := range []json.RawMessage{nil, json.RawMessage(`not json`)} {
		schema := convertSchemaToGemini(raw)
		if schema.Type != genai.TypeObject {
			t.Errorf("Expected fallback object schema, got %v", schema.Type)
		}
	}
}
