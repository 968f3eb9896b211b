package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/bots"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/chat"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/domain"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/models"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/ollama"
)

type stubBotStore struct {
	bot *models.Bot
}

func (s *stubBotStore) Create(ctx context.Context, bot *models.Bot) error { return nil }

func (s *stubBotStore) Get(ctx context.Context, id string) (*models.Bot, error) {
	if s.bot == nil || s.bot.ID != id {
		return nil, domain.ErrNotFound
	}
	return s.bot, nil
}

func (s *stubBotStore) Update(ctx context.Context, bot *models.Bot) error { return nil }
func (s *stubBotStore) Delete(ctx context.Context, id string) error       { return nil }

func (s *stubBotStore) List(ctx context.Context, limit, offset int) ([]models.Bot, error) {
	return nil, nil
}

func (s *stubBotStore) Count(ctx context.Context) (int, error)                 { return 0, nil }
func (s *stubBotStore) CountKnowledgeEnabled(ctx context.Context) (int, error) { return 0, nil }

func newBotsTestHandler(bot *models.Bot, chunks []ollama.Chunk) *BotsHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	chatService := chat.NewService(&stubStreamer{chunks: chunks}, stubRetriever{}, "English", logger)
	botsService := bots.NewService(&stubBotStore{bot: bot}, logger)
	return NewBotsHandler(botsService, chatService, logger)
}

func TestBotChatEndpoint(t *testing.T) {
	bot := &models.Bot{ID: "bot-1", Name: "Helper", KnowledgeBaseEnabled: true}
	h := newBotsTestHandler(bot, []ollama.Chunk{
		{Content: "Sure, I can help."},
		{Done: true},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/bot-chat",
		strings.NewReader(`{"bot_id":"bot-1","message":"help"}`))
	rec := httptest.NewRecorder()
	h.BotChat(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Response       string `json:"response"`
		ConversationID string `json:"conversation_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Response != "Sure, I can help." {
		t.Errorf("response = %q", body.Response)
	}
	if body.ConversationID == "" {
		t.Error("conversation_id not assigned")
	}
}

func TestBotChatEndpointStreaming(t *testing.T) {
	bot := &models.Bot{ID: "bot-1", Name: "Helper", KnowledgeBaseEnabled: true}
	h := newBotsTestHandler(bot, []ollama.Chunk{
		{Content: "Hi"},
		{Done: true},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/bot-chat",
		strings.NewReader(`{"bot_id":"bot-1","message":"hi","stream":true}`))
	rec := httptest.NewRecorder()
	h.BotChat(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `data: {"content":"Hi"}`) {
		t.Errorf("body missing content frame:\n%s", body)
	}
	if !strings.Contains(body, "data: [DONE]") {
		t.Errorf("body missing [DONE] sentinel:\n%s", body)
	}
}

func TestBotChatEndpointRequiresBotID(t *testing.T) {
	h := newBotsTestHandler(nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/bot-chat",
		strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()
	h.BotChat(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
