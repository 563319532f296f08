package graph

import (
	"encoding/json"

	"github.com/weaver-ai/weaver/pkg/models"
)

// EncodeState serializes a conversation state into a checkpoint snapshot.
// Checkpointer implementations treat the result as an opaque blob; only
// this package needs to know ConversationState's shape.
func EncodeState(state *models.ConversationState) ([]byte, error) {
	return json.Marshal(state)
}

// DecodeState reverses EncodeState.
func DecodeState(snapshot []byte) (*models.ConversationState, error) {
	var state models.ConversationState
	if err := json.Unmarshal(snapshot, &state); err != nil {
		return nil, err
	}
	return &state, nil
}
