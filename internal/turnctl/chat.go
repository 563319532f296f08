package turnctl

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/weaver-ai/weaver/internal/checkpoint"
	"github.com/weaver-ai/weaver/internal/graph"
	"github.com/weaver-ai/weaver/pkg/models"
)

type chatRequest struct {
	ThreadID string `json:"thread_id"`
	Content  string `json:"content"`
}

type chatResponse struct {
	ThreadID string `json:"thread_id"`
	Status   string `json:"status"`
}

// handleChat accepts a turn, appends it to the thread's state (loading the
// latest checkpoint when the thread already exists), and runs the graph in
// the background. Callers follow up with GET /api/events/{thread_id} to
// watch it, and POST /api/chat/cancel/{thread_id} to abort it.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.ThreadID == "" {
		req.ThreadID = uuid.NewString()
	}

	state, err := s.loadOrCreateState(r.Context(), req.ThreadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load thread state")
		return
	}
	if state.PendingInterrupt != nil {
		writeError(w, http.StatusConflict, "thread has a pending interrupt; resume it first")
		return
	}

	state.Messages = append(state.Messages, models.Message{
		ID:        uuid.NewString(),
		ThreadID:  req.ThreadID,
		Role:      models.RoleUser,
		Content:   req.Content,
		CreatedAt: time.Now(),
	})

	runCtx, cancel := context.WithCancel(context.Background())
	s.trackRun(req.ThreadID, cancel)

	go func() {
		defer cancel()
		defer s.untrackRun(req.ThreadID)
		if _, err := s.graph.Run(runCtx, state); err != nil {
			s.logger.Warn("turn run failed", "thread_id", req.ThreadID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, chatResponse{ThreadID: req.ThreadID, Status: "running"})
}

// handleCancel cancels a thread's in-flight run, if any.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("thread_id")
	s.mu.Lock()
	cancel, ok := s.running[threadID]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "no running turn for thread")
		return
	}
	cancel()
	writeJSON(w, http.StatusOK, map[string]any{"thread_id": threadID, "status": "cancelling"})
}

func (s *Server) loadOrCreateState(ctx context.Context, threadID string) (*models.ConversationState, error) {
	if s.checkpointer != nil {
		latest, err := s.checkpointer.Latest(ctx, threadID)
		if err == nil && latest != nil {
			return graph.DecodeState(latest.Snapshot)
		}
		if err != nil && err != checkpoint.ErrNotFound {
			return nil, err
		}
	}
	return &models.ConversationState{ThreadID: threadID, CreatedAt: time.Now()}, nil
}
