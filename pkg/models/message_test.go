package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRole_Constants(t *testing.T) {
	tests := []struct {
		constant Role
		expected string
	}{
		{RoleUser, "user"},
		{RoleAssistant, "assistant"},
		{RoleSystem, "system"},
		{RoleTool, "tool"},
	}

	for _, tt := range tests {
		t.Run(string(tt.constant), func(t *testing.T) {
			if string(tt.constant) != tt.expected {
				t.Errorf("constant = %q, want %q", tt.constant, tt.expected)
			}
		})
	}
}

func TestMessage_Struct(t *testing.T) {
	now := time.Now()
	msg := Message{
		ID:        "msg-123",
		ThreadID:  "thread-456",
		Role:      RoleUser,
		Content:   "Hello, world!",
		Metadata:  map[string]any{"key": "value"},
		CreatedAt: now,
	}

	if msg.ID != "msg-123" {
		t.Errorf("ID = %q, want %q", msg.ID, "msg-123")
	}
	if msg.ThreadID != "thread-456" {
		t.Errorf("ThreadID = %q, want %q", msg.ThreadID, "thread-456")
	}
	if msg.Role != RoleUser {
		t.Errorf("Role = %v, want %v", msg.Role, RoleUser)
	}
}

func TestMessage_JSONRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	original := Message{
		ID:          "msg-123",
		ThreadID:    "thread-456",
		Role:        RoleAssistant,
		Content:     "Hello!",
		ToolCalls:   []ToolCall{{ID: "tc-1", Name: "search", Input: json.RawMessage(`{"q":"test"}`)}},
		ToolResults: []ToolResult{{ToolCallID: "tc-1", Content: "result", IsError: false}},
		Metadata:    map[string]any{"source": "test"},
		CreatedAt:   now,
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if decoded.ID != original.ID {
		t.Errorf("ID = %q, want %q", decoded.ID, original.ID)
	}
	if decoded.ThreadID != original.ThreadID {
		t.Errorf("ThreadID = %q, want %q", decoded.ThreadID, original.ThreadID)
	}
	if len(decoded.ToolCalls) != 1 {
		t.Errorf("ToolCalls length = %d, want 1", len(decoded.ToolCalls))
	}
	if len(decoded.ToolResults) != 1 {
		t.Errorf("ToolResults length = %d, want 1", len(decoded.ToolResults))
	}
}

func TestToolCall_Struct(t *testing.T) {
	tc := ToolCall{
		ID:    "tc-123",
		Name:  "web_search",
		Input: json.RawMessage(`{"query": "test query"}`),
	}

	if tc.ID != "tc-123" {
		t.Errorf("ID = %q, want %q", tc.ID, "tc-123")
	}
	if tc.Name != "web_search" {
		t.Errorf("Name = %q, want %q", tc.Name, "web_search")
	}
}

func TestToolResult_Struct(t *testing.T) {
	tr := ToolResult{
		ToolCallID: "tc-123",
		Content:    "Search results here",
		IsError:    false,
	}

	if tr.ToolCallID != "tc-123" {
		t.Errorf("ToolCallID = %q, want %q", tr.ToolCallID, "tc-123")
	}
	if tr.IsError {
		t.Error("IsError should be false")
	}

	trError := ToolResult{
		ToolCallID: "tc-456",
		Content:    "Error occurred",
		IsError:    true,
	}
	if !trError.IsError {
		t.Error("IsError should be true")
	}
}
