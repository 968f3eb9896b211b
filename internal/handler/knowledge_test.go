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
	"time"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/knowledge"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/models"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/repository/postgres"
)

type stubKnowledgeStore struct {
	matches []postgres.Match
	lastK   int
}

func (s *stubKnowledgeStore) Add(ctx context.Context, item *models.KnowledgeItem, embedding []float32) error {
	return nil
}

func (s *stubKnowledgeStore) Get(ctx context.Context, id string) (*models.KnowledgeItem, error) {
	return nil, nil
}

func (s *stubKnowledgeStore) Update(ctx context.Context, item *models.KnowledgeItem, embedding []float32) error {
	return nil
}

func (s *stubKnowledgeStore) Delete(ctx context.Context, id string) error { return nil }

func (s *stubKnowledgeStore) DeleteBatch(ctx context.Context, ids []string) (int, error) {
	return 0, nil
}

func (s *stubKnowledgeStore) List(ctx context.Context, limit, offset int, category string) ([]models.KnowledgeItem, error) {
	return nil, nil
}

func (s *stubKnowledgeStore) Count(ctx context.Context, category string) (int, error) {
	return 0, nil
}

func (s *stubKnowledgeStore) Query(ctx context.Context, embedding []float32, k int, category string) ([]postgres.Match, error) {
	s.lastK = k
	return s.matches, nil
}

func (s *stubKnowledgeStore) Categories(ctx context.Context) ([]string, error) { return nil, nil }

func (s *stubKnowledgeStore) CategoryCounts(ctx context.Context) (map[string]int, error) {
	return nil, nil
}

func (s *stubKnowledgeStore) TagCounts(ctx context.Context, limit int) (map[string]int, error) {
	return nil, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func TestSearchAcceptsPostBody(t *testing.T) {
	store := &stubKnowledgeStore{matches: []postgres.Match{
		{Item: models.KnowledgeItem{ID: "k1", Title: "Refunds"}, Distance: 0.2},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := knowledge.NewService(store, stubEmbedder{}, time.Second, logger)
	h := NewKnowledgeHandler(svc, logger)

	req := httptest.NewRequest(http.MethodPost, "/api/knowledge/search",
		strings.NewReader(`{"query":"refund policy","top_k":5}`))
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if store.lastK != 5 {
		t.Errorf("top_k = %d, want 5", store.lastK)
	}
	var body struct {
		Results []models.RetrievedDocument `json:"results"`
		Count   int                        `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Count != 1 || len(body.Results) != 1 || body.Results[0].Title != "Refunds" {
		t.Errorf("results = %+v", body)
	}
}
