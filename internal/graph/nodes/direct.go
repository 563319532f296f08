package nodes

import (
	"context"

	"github.com/weaver-ai/weaver/internal/graph"
	"github.com/weaver-ai/weaver/pkg/models"
)

// directNode answers with a single completion: no tools, no research.
func directNode(cfg Config) graph.Handler {
	return func(ctx context.Context, state *models.ConversationState) (graph.Patch, error) {
		deltas, err := cfg.Client.Chat(ctx, cfg.Model, toLLMMessages(state.Messages), nil)
		if err != nil {
			return graph.Patch{}, err
		}
		text, _, err := runCompletion(deltas)
		if err != nil {
			return graph.Patch{}, err
		}
		return graph.Patch{Messages: []models.Message{{
			ThreadID: state.ThreadID,
			Role:     models.RoleAssistant,
			Content:  text,
		}}}, nil
	}
}
