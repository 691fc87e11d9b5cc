package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// StreamAdmissions pushes the caller's promotion notice over SSE, so an
// admitted user can move to seat selection without polling queue-status.
func (h *Handler) StreamAdmissions(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("eventId")
	userID := h.userID(r)
	if eventID == "" || userID == "" {
		http.Error(w, "eventId and userId are required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	notices := h.Emitter.Subscribe(ctx, eventID, userID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"waiting\"}\n\n")
	flusher.Flush()

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case notice, open := <-notices:
			if !open {
				return
			}
			data, err := json.Marshal(notice)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: admitted\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
