package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonathan/venture-planner/internal/pipeline"
)

// sseKeepAlive is how often an idle stream sends a comment line, so proxies
// keep the connection open while a run waits for a build mode.
const sseKeepAlive = 15 * time.Second

// SSEWriter helps write Server-Sent Events
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSE writer
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends an SSE event
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *SSEWriter) keepAlive() error {
	if _, err := fmt.Fprint(s.w, ": keep-alive\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// streamRun writes every progress event of run, then a final "complete" or
// "error" event carrying the run status. A client disconnect stops the
// stream but not the run.
func streamRun(w http.ResponseWriter, r *http.Request, run *pipeline.Run) {
	sse, err := NewSSEWriter(w)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	events, stop := run.Subscribe()
	defer stop()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if sse.keepAlive() != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				st := run.Status()
				name := "complete"
				if st.State == pipeline.StateError {
					name = "error"
				}
				_ = sse.WriteEvent(name, st)
				return
			}
			if sse.WriteEvent("progress", ev) != nil {
				return
			}
		}
	}
}
