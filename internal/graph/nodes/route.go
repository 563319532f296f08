package nodes

import (
	"context"

	"github.com/weaver-ai/weaver/internal/graph"
	"github.com/weaver-ai/weaver/pkg/models"
)

// routeNode calls the router and writes its decision into state.Mode.
// The caller's search_mode override, if any, travels in via
// state.Metadata["search_mode"] since the graph's Patch protocol has no
// dedicated override field.
func routeNode(cfg Config) graph.Handler {
	return func(ctx context.Context, state *models.ConversationState) (graph.Patch, error) {
		override, _ := state.Metadata["search_mode"].(string)
		decision, err := cfg.Router.Route(ctx, state.ThreadID, state.Messages, override)
		if err != nil {
			return graph.Patch{}, err
		}
		mode := string(decision.Mode)
		return graph.Patch{Mode: &mode}, nil
	}
}
