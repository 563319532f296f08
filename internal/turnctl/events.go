package turnctl

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/weaver-ai/weaver/internal/eventbus"
)

// handleEvents streams a thread's events as SSE. A Last-Event-ID header
// (or query param of the same name) replays buffered events newer than
// that sequence before switching to live delivery.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("thread_id")
	if s.bus == nil {
		writeError(w, http.StatusServiceUnavailable, "event bus not configured")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	var lastEventID uint64
	if raw := r.Header.Get("Last-Event-ID"); raw != "" {
		lastEventID, _ = strconv.ParseUint(raw, 10, 64)
	} else if raw := r.URL.Query().Get("last_event_id"); raw != "" {
		lastEventID, _ = strconv.ParseUint(raw, 10, 64)
	}

	sub := s.bus.Subscribe(threadID, lastEventID)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	ticker := time.NewTicker(eventbus.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Seq, ev.Type, data)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}
