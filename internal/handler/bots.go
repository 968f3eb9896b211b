package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/bots"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/chat"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/handler/sse"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/httputil"
)

// BotsHandler serves bot CRUD, the widget loader script, and the widget's
// chat endpoints.
type BotsHandler struct {
	bots   *bots.Service
	chat   *chat.Service
	logger *slog.Logger
}

func NewBotsHandler(botsService *bots.Service, chatService *chat.Service, logger *slog.Logger) *BotsHandler {
	return &BotsHandler{bots: botsService, chat: chatService, logger: logger}
}

// Create stores a new bot.
// POST /api/bots
func (h *BotsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in bots.Input
	if err := httputil.ParseJSON(w, r, &in); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	bot, err := h.bots.Create(r.Context(), &in)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, bot)
}

// List returns a page of bots.
// GET /api/bots?page=&size=
func (h *BotsHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.bots.List(r.Context(),
		httputil.QueryInt(r, "page", 1),
		httputil.QueryInt(r, "size", 10),
	)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, page)
}

// Stats summarizes bot usage.
// GET /api/bots/stats
func (h *BotsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.bots.Stats(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, stats)
}

// Get returns one bot.
// GET /api/bots/{id}
func (h *BotsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	bot, err := h.bots.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, bot)
}

// Update replaces a bot's configuration.
// PUT /api/bots/{id}
func (h *BotsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in bots.Input
	if err := httputil.ParseJSON(w, r, &in); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	bot, err := h.bots.Update(r.Context(), id, &in)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, bot)
}

// Delete removes one bot.
// DELETE /api/bots/{id}
func (h *BotsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.bots.Delete(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// EmbedScript serves the JavaScript loader a site embeds for this bot.
// GET /api/bots/{id}/embed-script, also mounted as /api/bot-embed/{id}.js
func (h *BotsHandler) EmbedScript(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	id = strings.TrimSuffix(id, ".js")
	bot, err := h.bots.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	script, err := bots.RenderEmbedScript(bot, requestBaseURL(r))
	if err != nil {
		handleError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	fmt.Fprint(w, script)
}

type botChatRequest struct {
	BotID          string `json:"bot_id,omitempty"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	Stream         bool   `json:"stream,omitempty"`
}

// Chat answers a widget message in one response body.
// POST /api/bots/{id}/chat
func (h *BotsHandler) Chat(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req botChatRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.respondChat(w, r, id, req)
}

// BotChat is the original widget endpoint: the bot id and the streaming
// flag travel in the request body instead of the path.
// POST /api/bot-chat
func (h *BotsHandler) BotChat(w http.ResponseWriter, r *http.Request) {
	var req botChatRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BotID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "bot_id is required")
		return
	}
	if req.Stream {
		h.streamChat(w, r, req.BotID, req)
		return
	}
	h.respondChat(w, r, req.BotID, req)
}

func (h *BotsHandler) respondChat(w http.ResponseWriter, r *http.Request, id string, req botChatRequest) {
	bot, err := h.bots.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	answer, err := h.chat.BotChat(r.Context(), bot, req.Message)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"response":        answer,
		"conversation_id": conversationID(req.ConversationID),
	})
}

// botFrame is the widget streaming payload. Unlike the main chat protocol
// the stream terminates with a bare [DONE] sentinel.
type botFrame struct {
	Content string `json:"content"`
}

// ChatStream answers a widget message over SSE.
// POST /api/bots/{id}/chat/stream
func (h *BotsHandler) ChatStream(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req botChatRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.streamChat(w, r, id, req)
}

func (h *BotsHandler) streamChat(w http.ResponseWriter, r *http.Request, id string, req botChatRequest) {
	bot, err := h.bots.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	events, err := h.chat.BotStream(r.Context(), bot, req.Message)
	if err != nil {
		handleError(w, err)
		return
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	keepalive := sse.NewKeepAlive(keepAliveInterval)
	keepalive.Start(writer, h.logger)
	defer keepalive.Stop()

	for ev := range events {
		switch {
		case ev.Done:
			if err := writer.WriteRaw("[DONE]"); err != nil {
				return
			}
		case ev.Err != "":
			// The widget shows whatever arrives; degrade to readable text.
			if err := writer.WriteJSON(botFrame{Content: ev.Err}); err != nil {
				return
			}
		default:
			if err := writer.WriteJSON(botFrame{Content: ev.Content}); err != nil {
				return
			}
		}
	}
}

// conversationID fabricates an id for widgets that did not send one.
func conversationID(given string) string {
	if given != "" {
		return given
	}
	return fmt.Sprintf("conv_%d", time.Now().UnixMilli())
}

// requestBaseURL reconstructs the externally visible origin, honoring the
// forwarded-proto header set by TLS-terminating proxies.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}
