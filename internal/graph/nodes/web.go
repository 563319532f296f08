package nodes

import (
	"context"
	"encoding/json"

	"github.com/weaver-ai/weaver/internal/graph"
	"github.com/weaver-ai/weaver/internal/tools"
	"github.com/weaver-ai/weaver/pkg/models"
)

// webNode forces one web_search call grounded in the latest user message,
// folds the result into context, then completes normally. Unlike
// agent_node, it never loops: one search, one answer.
func webNode(cfg Config) graph.Handler {
	return func(ctx context.Context, state *models.ConversationState) (graph.Patch, error) {
		query := lastUserContent(state.Messages)
		input, err := json.Marshal(map[string]any{"query": query})
		if err != nil {
			return graph.Patch{}, err
		}

		call := tools.Call{ToolCall: models.ToolCall{ID: "web_search_0", Name: "web_search", Input: input}}
		results := cfg.Executor.ExecuteSequentially(ctx, state.ThreadID, []tools.Call{call}, cfg.emit)
		toolResult := results[0].Result

		toolMessage := models.Message{
			ThreadID:    state.ThreadID,
			Role:        models.RoleTool,
			Content:     toolResult.Content,
			ToolResults: []models.ToolResult{toolResult},
		}

		deltas, err := cfg.Client.Chat(ctx, cfg.Model, toLLMMessages(append(state.Messages, toolMessage)), nil)
		if err != nil {
			return graph.Patch{}, err
		}
		text, _, err := runCompletion(deltas)
		if err != nil {
			return graph.Patch{}, err
		}

		return graph.Patch{Messages: []models.Message{
			toolMessage,
			{ThreadID: state.ThreadID, Role: models.RoleAssistant, Content: text},
		}}, nil
	}
}

func lastUserContent(history []models.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == models.RoleUser {
			return history[i].Content
		}
	}
	return ""
}
