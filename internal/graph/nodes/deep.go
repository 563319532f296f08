package nodes

import (
	"context"

	"github.com/weaver-ai/weaver/internal/graph"
	"github.com/weaver-ai/weaver/pkg/models"
)

// deepNode delegates to the research engine for the full decompose/
// search/summarize/evaluate/synthesize loop, records the resulting
// report as both an artifact and the turn's final assistant message, and
// folds the research state into state.Research for the checkpoint to
// carry forward.
func deepNode(cfg Config) graph.Handler {
	return func(ctx context.Context, state *models.ConversationState) (graph.Patch, error) {
		query := lastUserContent(state.Messages)
		result, err := cfg.Research.Run(ctx, query)
		if err != nil {
			return graph.Patch{}, err
		}

		artifact := models.Artifact{
			ThreadID:   state.ThreadID,
			Kind:       models.ArtifactKindReport,
			Name:       "deep research report",
			Content:    result.Report,
			ProducedBy: DeepNode,
		}

		return graph.Patch{
			Messages:  []models.Message{{ThreadID: state.ThreadID, Role: models.RoleAssistant, Content: result.Report}},
			Artifacts: []models.Artifact{artifact},
			Research:  result,
		}, nil
	}
}
