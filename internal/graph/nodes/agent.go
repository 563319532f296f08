package nodes

import (
	"context"
	"encoding/json"

	weaverctx "github.com/weaver-ai/weaver/internal/context"
	"github.com/weaver-ai/weaver/internal/graph"
	"github.com/weaver-ai/weaver/internal/llm"
	"github.com/weaver-ai/weaver/internal/tools"
	"github.com/weaver-ai/weaver/pkg/models"
)

// pendingToolCallsKey is the Metadata key agentNode stores a suspended
// turn's requested-but-unapproved tool calls under, so Resume (which
// clears PendingInterrupt but preserves Metadata) can hand them back on
// re-entry instead of losing them with the interrupt.
const pendingToolCallsKey = "pending_tool_calls"

// toolApprovedKey is the Metadata key a POST /api/interrupt/resume
// payload sets to authorize the calls stored under pendingToolCallsKey.
const toolApprovedKey = "tool_approved"

// agentNode runs the tool loop: complete, execute any requested tool
// calls, append their results, and repeat until the model stops
// requesting tools or MaxToolIterations is hit. A tool call whose
// descriptor requires approval suspends the whole turn with an Interrupt
// instead of executing — the approval gate agentNode owns because it's
// the node with the tool descriptor in hand. On resume, the approved
// calls stashed in Metadata are executed before the loop resumes asking
// the model for anything new.
func agentNode(cfg Config) graph.Handler {
	return func(ctx context.Context, state *models.ConversationState) (graph.Patch, error) {
		history := append([]models.Message(nil), state.Messages...)
		toolDefs := toLLMTools(descriptorsFor(cfg.Registry))
		var produced []models.Message
		var clearPending bool

		if pending, ok := approvedPendingCalls(state); ok {
			toolMsg := executeToolCalls(ctx, cfg, state.ThreadID, pending)
			produced = append(produced, toolMsg)
			history = append(history, toolMsg)
			clearPending = true
		}

		for iteration := 0; iteration < cfg.MaxToolIterations; iteration++ {
			history = pruneHistory(history, cfg)
			deltas, err := cfg.Client.Chat(ctx, cfg.Model, toLLMMessages(history), toolDefs)
			if err != nil {
				return graph.Patch{}, err
			}
			text, toolCalls, err := runCompletion(deltas)
			if err != nil {
				return graph.Patch{}, err
			}

			assistantMsg := models.Message{ThreadID: state.ThreadID, Role: models.RoleAssistant, Content: text}
			for _, tc := range toolCalls {
				assistantMsg.ToolCalls = append(assistantMsg.ToolCalls, models.ToolCall{ID: tc.ID, Name: tc.Name, Input: tc.Input})
			}
			produced = append(produced, assistantMsg)
			history = append(history, assistantMsg)

			if len(toolCalls) == 0 {
				return finish(produced, clearPending), nil
			}

			if requiresApproval(cfg.Registry, toolCalls) {
				calls := toModelToolCalls(toolCalls)
				return graph.Patch{
					Messages: produced,
					Metadata: map[string]any{pendingToolCallsKey: calls},
					Interrupt: &models.Interrupt{
						NodeName: AgentNode,
						Reason:   "tool requires approval",
						Payload:  map[string]any{"tool_calls": calls},
					},
				}, nil
			}

			toolMsg := executeToolCalls(ctx, cfg, state.ThreadID, toModelToolCalls(toolCalls))
			produced = append(produced, toolMsg)
			history = append(history, toolMsg)
		}

		return finish(produced, clearPending), nil
	}
}

// pruneHistory trims stale tool results out of history before it's sent to
// the model, bounding context growth across a long tool loop. A no-op when
// the node wasn't configured with pruning settings.
func pruneHistory(history []models.Message, cfg Config) []models.Message {
	if cfg.ContextPruning == nil {
		return history
	}
	ptrs := make([]*models.Message, len(history))
	for i := range history {
		ptrs[i] = &history[i]
	}
	pruned := weaverctx.PruneContextMessages(ptrs, *cfg.ContextPruning, cfg.CharWindow)
	out := make([]models.Message, len(pruned))
	for i, m := range pruned {
		if m != nil {
			out[i] = *m
		}
	}
	return out
}

func finish(produced []models.Message, clearPending bool) graph.Patch {
	patch := graph.Patch{Messages: produced}
	if clearPending {
		patch.Metadata = map[string]any{pendingToolCallsKey: nil, toolApprovedKey: nil}
	}
	return patch
}

func toModelToolCalls(calls []llm.ToolCall) []models.ToolCall {
	out := make([]models.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = models.ToolCall{ID: c.ID, Name: c.Name, Input: c.Input}
	}
	return out
}

func executeToolCalls(ctx context.Context, cfg Config, threadID string, toolCalls []models.ToolCall) models.Message {
	calls := make([]tools.Call, len(toolCalls))
	for i, tc := range toolCalls {
		calls[i] = tools.Call{ToolCall: tc}
	}
	results := cfg.Executor.ExecuteConcurrently(ctx, threadID, calls, cfg.emit)

	toolMsg := models.Message{ThreadID: threadID, Role: models.RoleTool}
	for _, r := range results {
		toolMsg.ToolResults = append(toolMsg.ToolResults, r.Result)
	}
	return toolMsg
}

// approvedPendingCalls returns the tool calls stashed by a prior interrupt
// if the resume payload approved them, decoding them back from the
// round-tripped-through-JSON Metadata shape.
func approvedPendingCalls(state *models.ConversationState) ([]models.ToolCall, bool) {
	approved, _ := state.Metadata[toolApprovedKey].(bool)
	if !approved {
		return nil, false
	}
	raw, ok := state.Metadata[pendingToolCallsKey]
	if !ok || raw == nil {
		return nil, false
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}
	var calls []models.ToolCall
	if err := json.Unmarshal(encoded, &calls); err != nil {
		return nil, false
	}
	return calls, len(calls) > 0
}

// requiresApproval reports whether any requested tool call's descriptor
// is marked RequiresApproval.
func requiresApproval(registry *tools.Registry, calls []llm.ToolCall) bool {
	if registry == nil {
		return false
	}
	for _, c := range calls {
		if _, descriptor, ok := registry.Get(c.Name); ok && descriptor.RequiresApproval {
			return true
		}
	}
	return false
}
