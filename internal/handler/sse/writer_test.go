package sse

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriterFraming(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	if err := w.WriteJSON(map[string]string{"content": "hi"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if err := w.WriteRaw("[DONE]"); err != nil {
		t.Fatalf("WriteRaw: %v", err)
	}
	if err := w.WriteKeepAlive(); err != nil {
		t.Fatalf("WriteKeepAlive: %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"data: {\"content\":\"hi\"}\n\n",
		"data: [DONE]\n\n",
		": keepalive\n\n",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q\nbody: %q", want, body)
		}
	}
}
