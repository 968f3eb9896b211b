package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/chat"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/handler/sse"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/httputil"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/models"
)

// RuleFinder resolves an optional rule_id on chat requests. Satisfied by the
// rules service.
type RuleFinder interface {
	Get(ctx context.Context, id string) (*models.CodingRule, error)
}

// ChatHandler serves the streaming chat endpoint.
type ChatHandler struct {
	chat   *chat.Service
	rules  RuleFinder
	logger *slog.Logger
}

func NewChatHandler(chatService *chat.Service, rules RuleFinder, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chat: chatService, rules: rules, logger: logger}
}

// keepAliveInterval is how often idle SSE connections get a comment ping.
const keepAliveInterval = 10 * time.Second

type chatRequest struct {
	Message        string            `json:"message"`
	ConversationID string            `json:"conversation_id"`
	History        []models.ChatTurn `json:"history"`
	RuleID         string            `json:"rule_id"`
}

// chatFrame is one SSE data payload of the chat protocol. The stream ends
// with an empty-content frame whose done flag is set.
type chatFrame struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

type errorFrame struct {
	Error string `json:"error"`
}

// StreamChat answers a chat message over SSE.
// POST /api/chat
func (h *ChatHandler) StreamChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	svcReq := &chat.Request{
		Message:        req.Message,
		ConversationID: req.ConversationID,
		History:        req.History,
	}
	if req.RuleID != "" {
		rule, err := h.rules.Get(r.Context(), req.RuleID)
		if err != nil {
			handleError(w, err)
			return
		}
		svcReq.Rule = rule
	}

	events, err := h.chat.Stream(r.Context(), svcReq)
	if err != nil {
		handleError(w, err)
		return
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Keep the connection warm through proxies while the model loads.
	keepalive := sse.NewKeepAlive(keepAliveInterval)
	keepalive.Start(writer, h.logger)
	defer keepalive.Stop()

	start := time.Now()
	for ev := range events {
		var frameErr error
		switch {
		case ev.Err != "":
			frameErr = writer.WriteJSON(errorFrame{Error: ev.Err})
		case ev.Done:
			frameErr = writer.WriteJSON(chatFrame{Done: true})
		default:
			frameErr = writer.WriteJSON(chatFrame{Content: ev.Content})
		}
		if frameErr != nil {
			h.logger.Debug("chat client disconnected", "error", frameErr)
			return
		}
	}

	h.logger.Info("chat stream completed",
		"conversation_id", req.ConversationID,
		"duration", time.Since(start),
	)
}
