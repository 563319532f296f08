package tokencount

import (
	"testing"

	"github.com/weaver-ai/weaver/pkg/models"
)

func msg(role models.Role, content string) models.Message {
	return models.Message{Role: role, Content: content}
}

func TestTruncate_NoOpWhenUnderBudget(t *testing.T) {
	messages := []models.Message{
		msg(models.RoleSystem, "you are a helpful assistant"),
		msg(models.RoleUser, "hi"),
	}
	out, result := Truncate(messages, "claude-3-5-sonnet", 10000, StrategyFIFO, 2)
	if len(out) != len(messages) {
		t.Fatalf("expected no truncation, got %d messages", len(out))
	}
	if result.RemovedCount != 0 {
		t.Fatalf("RemovedCount = %d, want 0", result.RemovedCount)
	}
}

func TestTruncate_FIFODropsOldestFirst(t *testing.T) {
	var messages []models.Message
	messages = append(messages, msg(models.RoleSystem, "system prompt"))
	for i := 0; i < 20; i++ {
		messages = append(messages, msg(models.RoleUser, "this is message number filler content to burn tokens"))
	}

	out, result := Truncate(messages, "gpt-4o", 80, StrategyFIFO, 2)
	if result.RemovedCount == 0 {
		t.Fatal("expected some messages to be removed")
	}
	if out[0].Role != models.RoleSystem {
		t.Fatalf("system message must be preserved, got role %v first", out[0].Role)
	}
}

func TestTruncate_PreservesToolCallPairing(t *testing.T) {
	call := msg(models.RoleAssistant, "calling a tool")
	call.ToolCalls = []models.ToolCall{{ID: "tc-1", Name: "search"}}
	result := msg(models.RoleTool, "padding to make this unit large enough to matter for truncation maths here")
	result.ToolResults = []models.ToolResult{{ToolCallID: "tc-1", Content: "padding to make this unit large enough to matter for truncation maths here"}}

	messages := []models.Message{
		msg(models.RoleSystem, "sys"),
		call,
		result,
		msg(models.RoleUser, "follow up question"),
	}

	out, _ := Truncate(messages, "gpt-4o", 5, StrategyFIFO, 1)

	sawCall := false
	sawResult := false
	for _, m := range out {
		if len(m.ToolCalls) > 0 {
			sawCall = true
		}
		if len(m.ToolResults) > 0 {
			sawResult = true
		}
	}
	if sawCall != sawResult {
		t.Fatalf("tool call/result pairing broken: call=%v result=%v", sawCall, sawResult)
	}
}

func TestTruncate_LastResortTruncatesUserMessage(t *testing.T) {
	long := ""
	for i := 0; i < 2000; i++ {
		long += "x"
	}
	messages := []models.Message{
		msg(models.RoleSystem, "sys"),
		msg(models.RoleUser, long),
	}

	out, result := Truncate(messages, "gpt-4o", 5, StrategyFIFO, 2)
	if !result.Truncated {
		t.Fatal("expected last-resort truncation to trigger")
	}
	if len(out) != 2 {
		t.Fatalf("expected both messages to survive (shrunk, not dropped), got %d", len(out))
	}
}

func TestEstimateTokens_CJKLowerRatio(t *testing.T) {
	latin := EstimateTokens("aaaaaaaaaa", "gpt-4o")
	cjk := EstimateTokens("一二三四五六七八九十", "claude-3-5-sonnet")
	if cjk <= 0 || latin <= 0 {
		t.Fatalf("expected positive estimates, got latin=%d cjk=%d", latin, cjk)
	}
}
