package llm

import (
	"encoding/json"
	"testing"
)

func TestNewAnthropicClient_RequiresAPIKey(t *testing.T) {
	if _, err := NewAnthropicClient(AnthropicConfig{}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestNewAnthropicClient_AppliesDefaults(t *testing.T) {
	c, err := NewAnthropicClient(AnthropicConfig{APIKey: "sk-ant-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.defaultModel != "claude-sonnet-4-20250514" {
		t.Errorf("defaultModel = %q", c.defaultModel)
	}
	if c.maxRetries != 3 {
		t.Errorf("maxRetries = %d, want 3", c.maxRetries)
	}
}

func TestAnthropicClient_BuildParams(t *testing.T) {
	c, err := NewAnthropicClient(AnthropicConfig{APIKey: "sk-ant-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	messages := []Message{
		{Role: "system", Content: "You are helpful."},
		{Role: "user", Content: "Hello!"},
		{Role: "assistant", Content: "Hi!", ToolCalls: []ToolCall{
			{ID: "call_1", Name: "get_weather", Input: json.RawMessage(`{"city":"London"}`)},
		}},
		{Role: "tool", ToolCallID: "call_1", Content: "Sunny"},
	}

	params, err := c.buildParams("claude-sonnet-4-20250514", messages, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(params.System) != 1 {
		t.Fatalf("got %d system blocks, want 1", len(params.System))
	}
	if len(params.Messages) != 3 {
		t.Fatalf("got %d messages, want 3 (system skipped)", len(params.Messages))
	}
}

func TestAnthropicClient_BuildParamsInvalidToolCallInput(t *testing.T) {
	c, _ := NewAnthropicClient(AnthropicConfig{APIKey: "sk-ant-test"})
	messages := []Message{
		{Role: "assistant", ToolCalls: []ToolCall{{ID: "call_1", Name: "x", Input: json.RawMessage(`not json`)}}},
	}
	if _, err := c.buildParams("m", messages, nil); err == nil {
		t.Fatal("expected error for invalid tool call input")
	}
}

func TestConvertToolsAnthropic(t *testing.T) {
	tools := []Tool{
		{Name: "get_weather", Description: "Get weather", InputSchema: json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}}}`)},
	}
	converted, err := convertToolsAnthropic(tools)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(converted) != 1 {
		t.Fatalf("got %d tools, want 1", len(converted))
	}
	if converted[0].OfTool == nil || converted[0].OfTool.Name != "get_weather" {
		t.Errorf("converted tool = %+v", converted[0])
	}
}

func TestConvertToolsAnthropic_InvalidSchema(t *testing.T) {
	tools := []Tool{{Name: "bad", InputSchema: json.RawMessage(`not json`)}}
	if _, err := convertToolsAnthropic(tools); err == nil {
		t.Fatal("expected error for invalid schema")
	}
}

func TestIsRetryableStreamErr(t *testing.T) {
	cases := []struct {
		err  string
		want bool
	}{
		{"rate_limit exceeded", true},
		{"429 too many requests", true},
		{"503 service unavailable", true},
		{"request timeout", true},
		{"invalid api key", false},
		{"", false},
	}
	for _, tc := range cases {
		var err error
		if tc.err != "" {
			err = errString(tc.err)
		}
		if got := isRetryableStreamErr(err); got != tc.want {
			t.Errorf("isRetryableStreamErr(%q) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

type errString string

func (e errString) Error() string { return string(e) }
