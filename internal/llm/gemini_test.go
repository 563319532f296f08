package llm

import (
	"encoding/json"
	"testing"

	"google.golang.org/genai"
)

func TestConvertMessagesGemini(t *testing.T) {
	messages := []Message{
		{Role: "system", Content: "ignored"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}
	result := convertMessagesGemini(messages)
	if len(result) != 2 {
		t.Fatalf("got %d contents, want 2 (system skipped)", len(result))
	}
	if result[0].Role != genai.RoleUser || result[1].Role != genai.RoleModel {
		t.Errorf("roles = %s, %s", result[0].Role, result[1].Role)
	}
}

func TestBuildGeminiConfig_SystemInstruction(t *testing.T) {
	messages := []Message{{Role: "system", Content: "be nice"}}
	config := buildGeminiConfig(messages, nil)
	if config.SystemInstruction == nil || config.SystemInstruction.Parts[0].Text != "be nice" {
		t.Errorf("system instruction = %+v", config.SystemInstruction)
	}
}

func TestConvertToolsGemini(t *testing.T) {
	tools := []Tool{{
		Name:        "lookup",
		Description: "look things up",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}},"required":["q"]}`),
	}}
	result := convertToolsGemini(tools)
	if len(result) != 1 || len(result[0].FunctionDeclarations) != 1 {
		t.Fatalf("result = %+v", result)
	}
	decl := result[0].FunctionDeclarations[0]
	if decl.Name != "lookup" || decl.Parameters.Type != "OBJECT" {
		t.Errorf("decl = %+v", decl)
	}
	if len(decl.Parameters.Required) != 1 || decl.Parameters.Required[0] != "q" {
		t.Errorf("required = %v", decl.Parameters.Required)
	}
}

func TestGeminiSchemaFromMap_Nested(t *testing.T) {
	schemaMap := map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":       "object",
			"properties": map[string]any{"name": map[string]any{"type": "string"}},
		},
	}
	schema := geminiSchemaFromMap(schemaMap)
	if schema.Type != "ARRAY" || schema.Items == nil || schema.Items.Type != "OBJECT" {
		t.Fatalf("schema = %+v", schema)
	}
}

func TestIsRetryableGeminiErr(t *testing.T) {
	if !isRetryableGeminiErr(errString("429 resource_exhausted")) {
		t.Error("expected 429 to be retryable")
	}
	if isRetryableGeminiErr(errString("invalid argument")) {
		t.Error("expected invalid argument to not be retryable")
	}
	if isRetryableGeminiErr(nil) {
		t.Error("expected nil error to not be retryable")
	}
}
