package handler

import (
	"log/slog"
	"net/http"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/chat"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/httputil"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/models"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/rules"
)

// RulesHandler serves coding-rule CRUD, search and application.
type RulesHandler struct {
	rules  *rules.Service
	chat   *chat.Service
	logger *slog.Logger
}

func NewRulesHandler(rulesService *rules.Service, chatService *chat.Service, logger *slog.Logger) *RulesHandler {
	return &RulesHandler{rules: rulesService, chat: chatService, logger: logger}
}

// Create stores a new rule.
// POST /api/coding-rules
func (h *RulesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in rules.Input
	if err := httputil.ParseJSON(w, r, &in); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rule, err := h.rules.Create(r.Context(), &in)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, rule)
}

// List returns a page of rules.
// GET /api/coding-rules?page=&size=&category=&language=
func (h *RulesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.rules.List(r.Context(),
		httputil.QueryInt(r, "page", 1),
		httputil.QueryInt(r, "size", 10),
		q.Get("category"),
		q.Get("language"),
	)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, page)
}

// Search matches rules by free text.
// GET /api/coding-rules/search?q=&limit=
func (h *RulesHandler) Search(w http.ResponseWriter, r *http.Request) {
	found, err := h.rules.Search(r.Context(),
		r.URL.Query().Get("q"),
		httputil.QueryInt(r, "limit", 20),
	)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]any{"results": found, "count": len(found)})
}

// Stats summarizes the rule store.
// GET /api/coding-rules/stats
func (h *RulesHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.rules.Stats(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, stats)
}

// Languages lists distinct rule languages.
// GET /api/coding-rules/languages
func (h *RulesHandler) Languages(w http.ResponseWriter, r *http.Request) {
	languages, err := h.rules.Languages(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]any{"languages": languages})
}

// Categories lists distinct rule categories.
// GET /api/coding-rules/categories
func (h *RulesHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.rules.Categories(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

// Upload ingests a rule file (md, json, or a recognized source file).
// POST /api/coding-rules/upload
func (h *RulesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	name, data, ok := readUpload(w, r)
	if !ok {
		return
	}
	created, err := h.rules.IngestFile(r.Context(), name, data)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, map[string]any{"file": name, "rules": created})
}

// Get returns one rule.
// GET /api/coding-rules/{id}
func (h *RulesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rule, err := h.rules.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, rule)
}

// Update replaces a rule.
// PUT /api/coding-rules/{id}
func (h *RulesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in rules.Input
	if err := httputil.ParseJSON(w, r, &in); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rule, err := h.rules.Update(r.Context(), id, &in)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, rule)
}

// Delete removes one rule.
// DELETE /api/coding-rules/{id}
func (h *RulesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.rules.Delete(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// Apply answers a question under one rule, non-streaming.
// POST /api/coding-rules/{id}/apply
func (h *RulesHandler) Apply(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Message string            `json:"message"`
		History []models.ChatTurn `json:"history"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rule, err := h.rules.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	answer, err := h.chat.Answer(r.Context(), &chat.Request{
		Message: req.Message,
		History: req.History,
		Rule:    rule,
	})
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]any{"rule_id": rule.ID, "response": answer})
}
