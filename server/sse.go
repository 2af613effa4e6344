package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/skitzo2000/MD-easy/notify"
	"github.com/skitzo2000/MD-easy/observability"
)

// keepaliveInterval is how often an idle stream gets a ping so proxies and
// clients keep the connection open.
const keepaliveInterval = 30 * time.Second

// handleEvents holds the connection open and relays hub events as SSE.
// The subscriber is released on every exit path: client disconnect, hub
// drop (closed channel), or server shutdown.
func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub)
	s.recorder.Record(observability.EventSubscribed, sub.ID())
	defer s.recorder.Record(observability.EventUnsubscribed, sub.ID())

	s.logger.Debug("event stream opened", "subscriber", sub.ID(), "remote", r.RemoteAddr)

	// Current state first, so a reconnecting viewer catches up without
	// waiting for the next refresh.
	version, nav := s.hub.Current()
	writeSSE(w, "version", notify.RefreshEvent{Version: version, Navigation: nav})
	flusher.Flush()

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				// Dropped by the hub: this stream fell too far behind.
				s.logger.Warn("event stream dropped", "subscriber", sub.ID())
				return
			}
			writeSSE(w, "refresh", ev)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, "event: ping\ndata: {}\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w io.Writer, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
