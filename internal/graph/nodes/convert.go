package nodes

import (
	"github.com/weaver-ai/weaver/internal/llm"
	"github.com/weaver-ai/weaver/internal/tools"
	"github.com/weaver-ai/weaver/pkg/models"
)

// toLLMMessages flattens thread history into the provider-neutral shape
// every llm.Client adapter expects, splitting a message's tool results
// into their own role="tool" entries the way every adapter's wire format
// requires one tool result per message.
func toLLMMessages(history []models.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		msg := llm.Message{Role: string(m.Role), Content: m.Content}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{ID: tc.ID, Name: tc.Name, Input: tc.Input})
		}
		out = append(out, msg)
		for _, tr := range m.ToolResults {
			out = append(out, llm.Message{Role: string(models.RoleTool), Content: tr.Content, ToolCallID: tr.ToolCallID})
		}
	}
	return out
}

// toLLMTools converts registry descriptors into the adapter-neutral Tool
// shape a Chat call advertises to the model.
func toLLMTools(descriptors []models.ToolDescriptor) []llm.Tool {
	out := make([]llm.Tool, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, llm.Tool{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema})
	}
	return out
}

// runCompletion drains a Chat stream into assembled text and any tool
// calls the model requested, merging ToolCallDelta fragments the way
// every provider adapter's own StreamMerger does downstream of here.
func runCompletion(deltas <-chan llm.Delta) (text string, toolCalls []llm.ToolCall, err error) {
	for delta := range deltas {
		switch delta.Type {
		case llm.DeltaText:
			text += delta.Text
		case llm.DeltaFinishReason:
			if delta.Finish == llm.FinishError {
				return text, nil, delta.Err
			}
			toolCalls = delta.ToolCalls
		}
	}
	return text, toolCalls, nil
}

// descriptorsFor lists the tool descriptors a node should advertise to
// the model, honoring the registry's frozen snapshot.
func descriptorsFor(registry *tools.Registry) []models.ToolDescriptor {
	if registry == nil {
		return nil
	}
	return registry.List(nil)
}
