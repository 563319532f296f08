package turnctl

import (
	"net/http"
	"strconv"

	"github.com/weaver-ai/weaver/internal/checkpoint"
	"github.com/weaver-ai/weaver/pkg/models"
)

// handleListVersions lists a thread's checkpoint history, newest first,
// for a "restore to version" client.
func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("thread_id")
	if s.checkpointer == nil {
		writeError(w, http.StatusServiceUnavailable, "checkpointing not configured")
		return
	}
	versions, err := s.checkpointer.List(r.Context(), threadID, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list versions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"thread_id": threadID, "versions": versions})
}

// handleRestore re-saves an earlier checkpoint's snapshot as the thread's
// newest checkpoint. Checkpoints are append-only (graph.checkpoint never
// overwrites), so "restore" means fast-forwarding the append-only log back
// to a prior state rather than mutating history.
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("thread_id")
	versionID := r.PathValue("version_id")
	if s.checkpointer == nil {
		writeError(w, http.StatusServiceUnavailable, "checkpointing not configured")
		return
	}
	seq, err := strconv.ParseInt(versionID, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "version_id must be an integer sequence")
		return
	}

	target, err := s.checkpointer.Get(r.Context(), threadID, seq)
	if err != nil || target == nil {
		writeError(w, http.StatusNotFound, "version not found")
		return
	}

	latest, err := s.checkpointer.Latest(r.Context(), threadID)
	if err != nil && err != checkpoint.ErrNotFound {
		writeError(w, http.StatusInternalServerError, "failed to read latest checkpoint")
		return
	}

	restored := &models.Checkpoint{
		ThreadID: threadID,
		Seq:      checkpoint.NextSeq(latest),
		NodeName: target.NodeName,
		Snapshot: target.Snapshot,
	}
	if err := s.checkpointer.Save(r.Context(), restored); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to restore version")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"thread_id":    threadID,
		"restored_seq": restored.Seq,
		"from_seq":     seq,
	})
}
