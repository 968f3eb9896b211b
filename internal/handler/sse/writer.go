// Package sse implements the server-sent-events plumbing used by the chat
// and bot streaming endpoints.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Writer frames payloads as SSE events over one HTTP response. It requires
// the underlying ResponseWriter to support flushing; buffered proxies would
// otherwise hold tokens back and defeat streaming. Writes are serialized so
// the keep-alive goroutine can share the connection with the event loop.
type Writer struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares the response for event streaming and returns a framing
// writer. Fails when the connection cannot flush.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	// Tells nginx-style proxies not to buffer the stream.
	h.Set("X-Accel-Buffering", "no")
	return &Writer{w: w, flusher: flusher}, nil
}

// WriteJSON marshals v and sends it as one data event.
func (s *Writer) WriteJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	return s.WriteRaw(string(payload))
}

// WriteRaw sends one data event with the payload verbatim. Used for the
// [DONE] sentinel the widget protocol ends with.
func (s *Writer) WriteRaw(data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// WriteKeepAlive sends an SSE comment line. Clients ignore comments, but the
// bytes keep idle connections open through proxies. A zero-byte write probes
// for a closed connection after the flush.
func (s *Writer) WriteKeepAlive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprint(s.w, ": keepalive\n\n"); err != nil {
		return fmt.Errorf("writing keepalive: %w", err)
	}
	s.flusher.Flush()
	if _, err := s.w.Write([]byte{}); err != nil {
		return fmt.Errorf("connection closed: %w", err)
	}
	return nil
}
