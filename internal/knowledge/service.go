// Package knowledge manages the vector-backed knowledge base: ingestion,
// CRUD, and similarity retrieval for the chat pipeline.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/domain"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/models"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/repository/postgres"
)

const (
	// listPreviewRunes is how much document content list responses carry.
	listPreviewRunes = 200

	// fragmentTargetRunes is the ingestion chunk size for uploaded documents.
	fragmentTargetRunes = 1000

	topTagsLimit = 20
)

// Embedder turns text into vectors. Satisfied by the model client.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the persistence surface the service needs.
type Store interface {
	Add(ctx context.Context, item *models.KnowledgeItem, embedding []float32) error
	Get(ctx context.Context, id string) (*models.KnowledgeItem, error)
	Update(ctx context.Context, item *models.KnowledgeItem, embedding []float32) error
	Delete(ctx context.Context, id string) error
	DeleteBatch(ctx context.Context, ids []string) (int, error)
	List(ctx context.Context, limit, offset int, category string) ([]models.KnowledgeItem, error)
	Count(ctx context.Context, category string) (int, error)
	Query(ctx context.Context, embedding []float32, k int, category string) ([]postgres.Match, error)
	Categories(ctx context.Context) ([]string, error)
	CategoryCounts(ctx context.Context) (map[string]int, error)
	TagCounts(ctx context.Context, limit int) (map[string]int, error)
}

// Service is the knowledge manager. It also implements the retriever used by
// the chat pipeline.
type Service struct {
	store            Store
	embedder         Embedder
	retrievalTimeout time.Duration
	logger           *slog.Logger
}

func NewService(store Store, embedder Embedder, retrievalTimeout time.Duration, logger *slog.Logger) *Service {
	return &Service{
		store:            store,
		embedder:         embedder,
		retrievalTimeout: retrievalTimeout,
		logger:           logger,
	}
}

// Input carries the writable fields of a knowledge item.
type Input struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

func (in *Input) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Content, validation.Required),
		validation.Field(&in.Category, validation.Length(0, 100)),
	)
}

// Add embeds and stores a new knowledge item.
func (s *Service) Add(ctx context.Context, in *Input) (*models.KnowledgeItem, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	embedding, err := s.embedOne(ctx, in.Title+"\n"+in.Content)
	if err != nil {
		return nil, err
	}

	item := &models.KnowledgeItem{
		ID:            uuid.NewString(),
		Title:         in.Title,
		Content:       in.Content,
		Category:      categoryOrDefault(in.Category),
		Tags:          in.Tags,
		ContentLength: utf8.RuneCountInString(in.Content),
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.Add(ctx, item, embedding); err != nil {
		return nil, fmt.Errorf("storing knowledge item: %w", err)
	}
	return item, nil
}

// Get returns one item with full content.
func (s *Service) Get(ctx context.Context, id string) (*models.KnowledgeItem, error) {
	return s.store.Get(ctx, id)
}

// Update replaces an item's fields and re-embeds its content.
func (s *Service) Update(ctx context.Context, id string, in *Input) (*models.KnowledgeItem, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	embedding, err := s.embedOne(ctx, in.Title+"\n"+in.Content)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	existing.Title = in.Title
	existing.Content = in.Content
	existing.Category = categoryOrDefault(in.Category)
	existing.Tags = in.Tags
	existing.ContentLength = utf8.RuneCountInString(in.Content)
	existing.UpdatedAt = &now

	if err := s.store.Update(ctx, existing, embedding); err != nil {
		return nil, fmt.Errorf("updating knowledge item: %w", err)
	}
	return existing, nil
}

// Delete removes one item.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// DeleteBatch removes several items and reports how many existed.
func (s *Service) DeleteBatch(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no ids given", domain.ErrValidation)
	}
	return s.store.DeleteBatch(ctx, ids)
}

// List returns a page of items with content trimmed to a preview.
func (s *Service) List(ctx context.Context, page, size int, category string) (models.Page[models.KnowledgeItem], error) {
	var zero models.Page[models.KnowledgeItem]
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 10
	}

	items, err := s.store.List(ctx, size, (page-1)*size, category)
	if err != nil {
		return zero, fmt.Errorf("listing knowledge: %w", err)
	}
	total, err := s.store.Count(ctx, category)
	if err != nil {
		return zero, fmt.Errorf("counting knowledge: %w", err)
	}

	for i := range items {
		items[i].Content = preview(items[i].Content, listPreviewRunes)
	}
	return models.NewPage(items, total, page, size), nil
}

// Search embeds the query and returns the topK most similar documents, most
// similar first. Raw store distances are normalized to [0,1] similarities.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]models.RetrievedDocument, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrValidation)
	}
	if topK < 1 {
		topK = 3
	}

	ctx, cancel := context.WithTimeout(ctx, s.retrievalTimeout)
	defer cancel()

	embedding, err := s.embedOne(ctx, query)
	if err != nil {
		return nil, err
	}
	matches, err := s.store.Query(ctx, embedding, topK, "")
	if err != nil {
		return nil, fmt.Errorf("querying knowledge: %w", err)
	}

	docs := make([]models.RetrievedDocument, 0, len(matches))
	for _, m := range matches {
		docs = append(docs, models.RetrievedDocument{
			ID:         m.Item.ID,
			Title:      m.Item.Title,
			Content:    m.Item.Content,
			Category:   m.Item.Category,
			Tags:       m.Item.Tags,
			Similarity: similarityFromDistance(m.Distance),
			Distance:   m.Distance,
			CreatedAt:  m.Item.CreatedAt,
		})
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Similarity > docs[j].Similarity
	})
	return docs, nil
}

// Stats summarizes the knowledge base for the dashboard.
type Stats struct {
	TotalDocuments int            `json:"total_documents"`
	Categories     map[string]int `json:"categories"`
	TopTags        map[string]int `json:"top_tags"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.store.Count(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("counting knowledge: %w", err)
	}
	categories, err := s.store.CategoryCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting categories: %w", err)
	}
	tags, err := s.store.TagCounts(ctx, topTagsLimit)
	if err != nil {
		return nil, fmt.Errorf("counting tags: %w", err)
	}
	return &Stats{TotalDocuments: total, Categories: categories, TopTags: tags}, nil
}

// Categories lists the distinct categories in use.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.store.Categories(ctx)
}

// IngestFile splits an uploaded document into fragments and stores each as
// its own item so retrieval stays focused. JSON uploads carry explicit items;
// text and markdown are chunked by paragraph.
func (s *Service) IngestFile(ctx context.Context, name string, data []byte, category string) (int, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return s.ingestJSON(ctx, data, category)
	case ".txt", ".md", ".markdown":
		return s.ingestText(ctx, name, string(data), category)
	default:
		return 0, fmt.Errorf("%w: unsupported file type %q", domain.ErrValidation, filepath.Ext(name))
	}
}

func (s *Service) ingestJSON(ctx context.Context, data []byte, category string) (int, error) {
	var items []Input
	if err := json.Unmarshal(data, &items); err != nil {
		return 0, fmt.Errorf("%w: parsing json upload: %v", domain.ErrValidation, err)
	}
	added := 0
	for i := range items {
		if category != "" && items[i].Category == "" {
			items[i].Category = category
		}
		if _, err := s.Add(ctx, &items[i]); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

func (s *Service) ingestText(ctx context.Context, name, content string, category string) (int, error) {
	fragments := splitFragments(content, fragmentTargetRunes)
	if len(fragments) == 0 {
		return 0, fmt.Errorf("%w: file is empty", domain.ErrValidation)
	}

	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	added := 0
	for i, frag := range fragments {
		title := base
		if len(fragments) > 1 {
			title = fmt.Sprintf("%s (part %d)", base, i+1)
		}
		in := &Input{Title: title, Content: frag, Category: category, Tags: []string{"upload"}}
		if _, err := s.Add(ctx, in); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// splitFragments groups paragraphs into chunks of roughly target runes.
// Paragraphs larger than the target become their own fragment.
func splitFragments(content string, target int) []string {
	paragraphs := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n\n")

	var fragments []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if text := strings.TrimSpace(current.String()); text != "" {
			fragments = append(fragments, text)
		}
		current.Reset()
		currentLen = 0
	}

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n := len([]rune(p))
		if currentLen > 0 && currentLen+n > target {
			flush()
		}
		if currentLen > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
		currentLen += n
	}
	flush()
	return fragments
}

// similarityFromDistance maps a raw vector distance to a [0,1] relevance
// score. Smaller distances score higher; out-of-range values are clamped.
func similarityFromDistance(distance float64) float64 {
	sim := 1 - distance
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

func (s *Service) embedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding text: %v", domain.ErrUnavailable, err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: embedder returned no vector", domain.ErrUnavailable)
	}
	return vectors[0], nil
}

func categoryOrDefault(category string) string {
	if category == "" {
		return "general"
	}
	return category
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
