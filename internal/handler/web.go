package handler

import (
	"log/slog"
	"net/http"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/httputil"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/knowledge"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/models"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/scraper"
)

// WebHandler serves web scraping and scrape-to-knowledge import.
type WebHandler struct {
	scraper   *scraper.Scraper
	knowledge *knowledge.Service
	logger    *slog.Logger
}

func NewWebHandler(s *scraper.Scraper, k *knowledge.Service, logger *slog.Logger) *WebHandler {
	return &WebHandler{scraper: s, knowledge: k, logger: logger}
}

type scrapeRequest struct {
	URL      string `json:"url"`
	Category string `json:"category"`
	AutoAdd  bool   `json:"auto_add_to_knowledge"`
}

// Scrape fetches a page and returns its extracted content. With
// auto_add_to_knowledge set the content is also stored.
// POST /api/scrape, also mounted as /api/web/parse
func (h *WebHandler) Scrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	page, err := h.scraper.Scrape(r.Context(), req.URL)
	if err != nil {
		handleError(w, err)
		return
	}
	if !req.AutoAdd {
		httputil.RespondJSON(w, http.StatusOK, page)
		return
	}
	item, err := h.addScraped(r, page, req.Category)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]any{"page": page, "document": item})
}

// Import scrapes a page and stores its content in the knowledge base.
// POST /api/scrape/import, also mounted as /api/knowledge/web
func (h *WebHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	page, err := h.scraper.Scrape(r.Context(), req.URL)
	if err != nil {
		handleError(w, err)
		return
	}
	item, err := h.addScraped(r, page, req.Category)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, map[string]any{"url": page.URL, "document": item})
}

func (h *WebHandler) addScraped(r *http.Request, page *scraper.Page, category string) (*models.KnowledgeItem, error) {
	if category == "" {
		category = "web"
	}
	title := page.Title
	if title == "" {
		title = page.Domain
	}
	return h.knowledge.Add(r.Context(), &knowledge.Input{
		Title:    title,
		Content:  page.Content,
		Category: category,
		Tags:     append([]string{"web", page.Domain}, page.Keywords...),
	})
}
