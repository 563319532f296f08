package turnctl

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/weaver-ai/weaver/internal/graph"
)

type resumeRequest struct {
	ThreadID string         `json:"thread_id"`
	Approval map[string]any `json:"approval"`
}

type resumeResponse struct {
	ThreadID string `json:"thread_id"`
	Status   string `json:"status"`
}

// handleResume loads a thread's latest checkpoint (which must be sitting
// at a pending interrupt), merges the caller's approval payload, and
// re-enters the graph at the interrupted node in the background.
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	var req resumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ThreadID == "" {
		writeError(w, http.StatusBadRequest, "thread_id is required")
		return
	}
	if s.checkpointer == nil {
		writeError(w, http.StatusServiceUnavailable, "checkpointing not configured")
		return
	}

	latest, err := s.checkpointer.Latest(r.Context(), req.ThreadID)
	if err != nil || latest == nil {
		writeError(w, http.StatusNotFound, "no checkpoint for thread")
		return
	}
	state, err := graph.DecodeState(latest.Snapshot)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to decode checkpoint")
		return
	}
	if state.PendingInterrupt == nil {
		writeError(w, http.StatusConflict, "thread has no pending interrupt")
		return
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.trackRun(req.ThreadID, cancel)

	go func() {
		defer cancel()
		defer s.untrackRun(req.ThreadID)
		if _, err := graph.Resume(runCtx, s.graph, state, req.Approval); err != nil {
			s.logger.Warn("resume failed", "thread_id", req.ThreadID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, resumeResponse{ThreadID: req.ThreadID, Status: "resuming"})
}
