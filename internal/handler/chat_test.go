package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/chat"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/domain"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/models"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/ollama"
)

type stubStreamer struct {
	chunks []ollama.Chunk
}

func (s *stubStreamer) ChatStream(ctx context.Context, req ollama.ChatRequest) (<-chan ollama.Chunk, error) {
	ch := make(chan ollama.Chunk, len(s.chunks))
	for _, c := range s.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

type stubRetriever struct{}

func (stubRetriever) Search(ctx context.Context, query string, topK int) ([]models.RetrievedDocument, error) {
	return nil, nil
}

type stubRules struct {
	rule *models.CodingRule
}

func (s *stubRules) Get(ctx context.Context, id string) (*models.CodingRule, error) {
	if s.rule == nil || s.rule.ID != id {
		return nil, domain.ErrNotFound
	}
	return s.rule, nil
}

func newChatTestHandler(chunks []ollama.Chunk, rule *models.CodingRule) *ChatHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := chat.NewService(&stubStreamer{chunks: chunks}, stubRetriever{}, "English", logger)
	return NewChatHandler(svc, &stubRules{rule: rule}, logger)
}

func TestStreamChatFraming(t *testing.T) {
	h := newChatTestHandler([]ollama.Chunk{
		{Content: "<think>plan</think>Hi"},
		{Content: " there"},
		{Done: true},
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hello"}`))
	rec := httptest.NewRecorder()
	h.StreamChat(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	wantFrames := []string{
		`data: {"content":"Hi","done":false}`,
		`data: {"content":" there","done":false}`,
		`data: {"content":"","done":true}`,
	}
	for _, frame := range wantFrames {
		if !strings.Contains(body, frame) {
			t.Errorf("body missing frame %s\nbody:\n%s", frame, body)
		}
	}
	if strings.Contains(body, "plan") {
		t.Error("reasoning content leaked into stream")
	}
}

func TestStreamChatValidation(t *testing.T) {
	h := newChatTestHandler(nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":""}`))
	rec := httptest.NewRecorder()
	h.StreamChat(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStreamChatUnknownRule(t *testing.T) {
	h := newChatTestHandler(nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"hi","rule_id":"missing"}`))
	rec := httptest.NewRecorder()
	h.StreamChat(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
