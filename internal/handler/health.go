package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/httputil"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/ollama"
)

// ModelClient is the slice of the model client the health endpoints need.
type ModelClient interface {
	Health(ctx context.Context) bool
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)
	ListRunningModels(ctx context.Context) ([]ollama.ModelInfo, error)
	ChatModel() string
	EmbeddingModel() string
}

// Pinger reports database liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and model status endpoints.
type HealthHandler struct {
	llm    ModelClient
	db     Pinger
	logger *slog.Logger
}

func NewHealthHandler(llm ModelClient, db Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{llm: llm, db: db, logger: logger}
}

// Root is the bare liveness message served at the server root.
// GET /
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"message":   "customer service bot is running",
		"timestamp": time.Now().UTC(),
	})
}

// Health is the basic liveness probe.
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// Status reports the health of the dependencies the chat pipeline needs.
// GET /api/status, also mounted as /api/health
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbOK := h.db.Ping(ctx) == nil
	ollamaOK := h.llm.Health(ctx)

	status := http.StatusOK
	if !dbOK || !ollamaOK {
		status = http.StatusServiceUnavailable
	}
	httputil.RespondJSON(w, status, map[string]any{
		"database":        dbOK,
		"ollama":          ollamaOK,
		"chat_model":      h.llm.ChatModel(),
		"embedding_model": h.llm.EmbeddingModel(),
	})
}

// Models lists installed and running models.
// GET /api/models
func (h *HealthHandler) Models(w http.ResponseWriter, r *http.Request) {
	installed, err := h.llm.ListModels(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	running, err := h.llm.ListRunningModels(r.Context())
	if err != nil {
		h.logger.Warn("listing running models failed", "error", err)
		running = nil
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"installed": installed,
		"running":   running,
	})
}
