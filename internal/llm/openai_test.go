package llm

import (
	"encoding/json"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestNewOpenAIClient_RequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestNewOpenAIClient_AppliesDefaults(t *testing.T) {
	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.defaultModel != "gpt-4o" {
		t.Errorf("defaultModel = %q", c.defaultModel)
	}
}

func TestConvertMessagesOpenAI(t *testing.T) {
	messages := []Message{
		{Role: "system", Content: "be nice"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello", ToolCalls: []ToolCall{
			{ID: "call_1", Name: "lookup", Input: json.RawMessage(`{"q":"x"}`)},
		}},
		{Role: "tool", ToolCallID: "call_1", Content: "result"},
	}

	result := convertMessagesOpenAI(messages)
	if len(result) != 4 {
		t.Fatalf("got %d messages, want 4", len(result))
	}
	if result[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("first role = %s", result[0].Role)
	}
	if result[2].ToolCalls[0].Function.Name != "lookup" {
		t.Errorf("tool call name = %s", result[2].ToolCalls[0].Function.Name)
	}
	if result[3].Role != openai.ChatMessageRoleTool || result[3].ToolCallID != "call_1" {
		t.Errorf("tool message = %+v", result[3])
	}
}

func TestConvertToolsOpenAI(t *testing.T) {
	tools := []Tool{{Name: "lookup", Description: "look things up", InputSchema: json.RawMessage(`{"type":"object"}`)}}
	result := convertToolsOpenAI(tools)
	if len(result) != 1 || result[0].Function.Name != "lookup" {
		t.Fatalf("result = %+v", result)
	}
}

func TestConvertToolsOpenAI_FallsBackOnInvalidSchema(t *testing.T) {
	tools := []Tool{{Name: "bad", InputSchema: json.RawMessage(`not json`)}}
	result := convertToolsOpenAI(tools)
	if len(result) != 1 {
		t.Fatalf("got %d tools, want 1", len(result))
	}
	params, ok := result[0].Function.Parameters.(map[string]any)
	if !ok || params["type"] != "object" {
		t.Errorf("fallback schema = %+v", result[0].Function.Parameters)
	}
}
