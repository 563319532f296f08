package llm

import (
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

func TestConvertMessagesBedrock(t *testing.T) {
	messages := []Message{
		{Role: "system", Content: "ignored, handled separately"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello", ToolCalls: []ToolCall{
			{ID: "call_1", Name: "lookup", Input: json.RawMessage(`{"q":"x"}`)},
		}},
		{Role: "tool", ToolCallID: "call_1", Content: "result"},
	}

	result := convertMessagesBedrock(messages)
	if len(result) != 3 {
		t.Fatalf("got %d messages, want 3 (system skipped)", len(result))
	}
	if result[0].Role != types.ConversationRoleUser {
		t.Errorf("first role = %s", result[0].Role)
	}
	if result[1].Role != types.ConversationRoleAssistant {
		t.Errorf("second role = %s", result[1].Role)
	}
}

func TestConvertMessagesBedrock_EmptyMessageSkipped(t *testing.T) {
	messages := []Message{{Role: "user", Content: ""}}
	if result := convertMessagesBedrock(messages); len(result) != 0 {
		t.Errorf("got %d messages, want 0", len(result))
	}
}

func TestConvertToolsBedrock(t *testing.T) {
	tools := []Tool{{Name: "lookup", Description: "look things up", InputSchema: json.RawMessage(`{"type":"object"}`)}}
	cfg, err := convertToolsBedrock(tools)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Tools) != 1 {
		t.Fatalf("got %d tools, want 1", len(cfg.Tools))
	}
}

func TestConvertToolsBedrock_InvalidSchema(t *testing.T) {
	tools := []Tool{{Name: "bad", InputSchema: json.RawMessage(`not json`)}}
	if _, err := convertToolsBedrock(tools); err == nil {
		t.Fatal("expected error for invalid schema")
	}
}

func TestIsRetryableBedrockErr(t *testing.T) {
	cases := []struct {
		err  string
		want bool
	}{
		{"ThrottlingException: rate exceeded", true},
		{"ServiceUnavailableException", true},
		{"ValidationException: bad input", false},
	}
	for _, tc := range cases {
		if got := isRetryableBedrockErr(errString(tc.err)); got != tc.want {
			t.Errorf("isRetryableBedrockErr(%q) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
