package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/banshee-data/linefollow/internal/httputil"
	"github.com/banshee-data/linefollow/internal/monitoring"
)

// handleStream pushes each frame to the client as a Server-Sent Event until
// the client goes away or the stream closes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.stream == nil {
		httputil.ServiceUnavailable(w, "no live stream")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.InternalServerError(w, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	id, frames := s.stream.Subscribe()
	defer s.stream.Unsubscribe(id)
	monitoring.Debugf("dashboard: stream subscriber %s connected", id)

	// Initial ping establishes the connection before the first frame.
	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return
			}
			payload, err := json.Marshal(f)
			if err != nil {
				monitoring.Logf("dashboard: encode stream frame: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", f.Tick, payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			monitoring.Debugf("dashboard: stream subscriber %s disconnected", id)
			return
		}
	}
}
