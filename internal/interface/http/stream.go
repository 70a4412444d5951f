package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/prepwise/progression-engine/pkg/logger"
)

// handleRoadmapStream relays vote updates as server-sent events until the
// client disconnects. Updates carry counts only; viewers refetch the feed
// for their own upvote flags.
func (s *Server) handleRoadmapStream(w http.ResponseWriter, r *http.Request) {
	if s.services.LiveFeed == nil {
		notConfigured(w, r)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, r, http.StatusInternalServerError, "streaming_unsupported", "streaming is not supported")
		return
	}

	ctx := r.Context()
	updates, err := s.services.LiveFeed.Subscribe(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	log := logger.FromContext(ctx)
	heartbeat := time.NewTicker(s.config.StreamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case u, ok := <-updates:
			if !ok {
				return
			}
			data, err := sonic.ConfigDefault.Marshal(u)
			if err != nil {
				log.Warn("failed to encode vote update", logger.IdeaID(u.IdeaID), logger.Err(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: vote\nid: %d\ndata: %s\n\n", u.At.UnixMilli(), data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
