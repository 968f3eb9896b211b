package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/httputil"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/knowledge"
)

// maxUploadBytes bounds file uploads for knowledge and rule ingestion.
const maxUploadBytes = 10 << 20

// KnowledgeHandler serves the knowledge-base CRUD and retrieval endpoints.
type KnowledgeHandler struct {
	knowledge *knowledge.Service
	logger    *slog.Logger
}

func NewKnowledgeHandler(svc *knowledge.Service, logger *slog.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{knowledge: svc, logger: logger}
}

// Add stores a new knowledge item.
// POST /api/knowledge
func (h *KnowledgeHandler) Add(w http.ResponseWriter, r *http.Request) {
	var in knowledge.Input
	if err := httputil.ParseJSON(w, r, &in); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	item, err := h.knowledge.Add(r.Context(), &in)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, item)
}

// List returns a page of knowledge items with previewed content.
// GET /api/knowledge?page=&size=&category=
func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.knowledge.List(r.Context(),
		httputil.QueryInt(r, "page", 1),
		httputil.QueryInt(r, "size", 10),
		r.URL.Query().Get("category"),
	)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, page)
}

// Search runs a similarity query against the knowledge base. The original
// client posts {query, top_k}; query parameters work too.
// POST /api/knowledge/search, GET /api/knowledge/search?query=&top_k=
func (h *KnowledgeHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	topK := httputil.QueryInt(r, "top_k", 3)
	if r.Method == http.MethodPost {
		var req struct {
			Query string `json:"query"`
			TopK  int    `json:"top_k"`
		}
		if err := httputil.ParseJSON(w, r, &req); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		query = req.Query
		if req.TopK > 0 {
			topK = req.TopK
		}
	}
	docs, err := h.knowledge.Search(r.Context(), query, topK)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]any{"results": docs, "count": len(docs)})
}

// Stats summarizes the knowledge base.
// GET /api/knowledge/stats
func (h *KnowledgeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.knowledge.Stats(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, stats)
}

// Categories lists distinct knowledge categories.
// GET /api/knowledge/categories
func (h *KnowledgeHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.knowledge.Categories(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

// Upload ingests a knowledge file (txt, md or json) as multipart form data.
// POST /api/knowledge/upload
func (h *KnowledgeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	name, data, ok := readUpload(w, r)
	if !ok {
		return
	}
	added, err := h.knowledge.IngestFile(r.Context(), name, data, r.FormValue("category"))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, map[string]any{"file": name, "documents_added": added})
}

// Get returns one knowledge item with full content.
// GET /api/knowledge/{id}
func (h *KnowledgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	item, err := h.knowledge.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, item)
}

// Update replaces a knowledge item and re-embeds it.
// PUT /api/knowledge/{id}
func (h *KnowledgeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in knowledge.Input
	if err := httputil.ParseJSON(w, r, &in); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	item, err := h.knowledge.Update(r.Context(), id, &in)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, item)
}

// Delete removes one knowledge item.
// DELETE /api/knowledge/{id}
func (h *KnowledgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.knowledge.Delete(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// DeleteBatch removes several items at once.
// POST /api/knowledge/batch-delete
func (h *KnowledgeHandler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	deleted, err := h.knowledge.DeleteBatch(r.Context(), req.IDs)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]any{"requested": len(req.IDs), "deleted": deleted})
}

// readUpload pulls the "file" part out of a multipart request.
func readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid multipart form")
		return "", nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "file field is required")
		return "", nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "reading upload failed")
		return "", nil, false
	}
	return header.Filename, data, true
}
