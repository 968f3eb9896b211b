package knowledge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/domain"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/models"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/repository/postgres"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fakeStore struct {
	items   map[string]*models.KnowledgeItem
	matches []postgres.Match
	added   []*models.KnowledgeItem
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: map[string]*models.KnowledgeItem{}}
}

func (f *fakeStore) Add(ctx context.Context, item *models.KnowledgeItem, embedding []float32) error {
	cp := *item
	f.items[item.ID] = &cp
	f.added = append(f.added, &cp)
	return nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (*models.KnowledgeItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (f *fakeStore) Update(ctx context.Context, item *models.KnowledgeItem, embedding []float32) error {
	if _, ok := f.items[item.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *item
	f.items[item.ID] = &cp
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	if _, ok := f.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeStore) DeleteBatch(ctx context.Context, ids []string) (int, error) {
	n := 0
	for _, id := range ids {
		if _, ok := f.items[id]; ok {
			delete(f.items, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) List(ctx context.Context, limit, offset int, category string) ([]models.KnowledgeItem, error) {
	var out []models.KnowledgeItem
	for _, item := range f.items {
		out = append(out, *item)
	}
	return out, nil
}

func (f *fakeStore) Count(ctx context.Context, category string) (int, error) {
	return len(f.items), nil
}

func (f *fakeStore) Query(ctx context.Context, embedding []float32, k int, category string) ([]postgres.Match, error) {
	return f.matches, nil
}

func (f *fakeStore) Categories(ctx context.Context) ([]string, error) {
	return []string{"general"}, nil
}

func (f *fakeStore) CategoryCounts(ctx context.Context) (map[string]int, error) {
	return map[string]int{"general": len(f.items)}, nil
}

func (f *fakeStore) TagCounts(ctx context.Context, limit int) (map[string]int, error) {
	return map[string]int{}, nil
}

func newTestService(store *fakeStore, embedder *fakeEmbedder) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, embedder, 15*time.Second, logger)
}

func TestAddValidatesAndStores(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeEmbedder{})

	item, err := svc.Add(context.Background(), &Input{Title: "Refunds", Content: "Refunds take 5 days."})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if item.ID == "" || item.Category != "general" {
		t.Fatalf("item = %+v", item)
	}
	if item.ContentLength != len([]rune("Refunds take 5 days.")) {
		t.Fatalf("ContentLength = %d", item.ContentLength)
	}

	_, err = svc.Add(context.Background(), &Input{Title: "", Content: "x"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestContentLengthCountsRunes(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeEmbedder{})

	content := "退款会在五个工作日内原路退回。"
	item, err := svc.Add(context.Background(), &Input{Title: "退款", Content: content})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if item.ContentLength != utf8.RuneCountInString(content) {
		t.Fatalf("ContentLength = %d, want %d", item.ContentLength, utf8.RuneCountInString(content))
	}
	if item.ContentLength == len(content) {
		t.Fatal("ContentLength is a byte count for multibyte content")
	}
}

func TestAddEmbedderFailure(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeEmbedder{err: errors.New("model missing")})
	_, err := svc.Add(context.Background(), &Input{Title: "t", Content: "c"})
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestSearchSimilarityMapping(t *testing.T) {
	store := newFakeStore()
	store.matches = []postgres.Match{
		{Item: models.KnowledgeItem{ID: "near", Title: "near"}, Distance: 0.1},
		{Item: models.KnowledgeItem{ID: "mid", Title: "mid"}, Distance: 0.5},
		{Item: models.KnowledgeItem{ID: "neg", Title: "neg"}, Distance: -0.2},
	}
	svc := newTestService(store, &fakeEmbedder{})

	docs, err := svc.Search(context.Background(), "anything", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("got %d docs", len(docs))
	}

	wantOrder := []string{"neg", "near", "mid"}
	wantSim := []float64{1.0, 0.9, 0.5}
	for i, doc := range docs {
		if doc.ID != wantOrder[i] {
			t.Errorf("docs[%d].ID = %q, want %q", i, doc.ID, wantOrder[i])
		}
		if math.Abs(doc.Similarity-wantSim[i]) > 1e-9 {
			t.Errorf("docs[%d].Similarity = %v, want %v", i, doc.Similarity, wantSim[i])
		}
	}
}

func TestSearchRejectsBlankQuery(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeEmbedder{})
	_, err := svc.Search(context.Background(), "   ", 3)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestListTrimsContentToPreview(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeEmbedder{})
	long := strings.Repeat("a", listPreviewRunes+50)
	if _, err := svc.Add(context.Background(), &Input{Title: "long", Content: long}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	page, err := svc.List(context.Background(), 1, 10, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 {
		t.Fatalf("page = %+v", page)
	}
	got := page.Items[0].Content
	if got != strings.Repeat("a", listPreviewRunes)+"..." {
		t.Fatalf("preview = %q (len %d)", got[:40], len(got))
	}
}

func TestIngestFile(t *testing.T) {
	t.Run("text is chunked by paragraph", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store, &fakeEmbedder{})
		content := strings.Repeat("p", 800) + "\n\n" + strings.Repeat("q", 800)
		n, err := svc.IngestFile(context.Background(), "guide.md", []byte(content), "docs")
		if err != nil {
			t.Fatalf("IngestFile: %v", err)
		}
		if n != 2 {
			t.Fatalf("added %d fragments, want 2", n)
		}
		if store.added[0].Title != "guide (part 1)" || store.added[1].Title != "guide (part 2)" {
			t.Fatalf("titles = %q, %q", store.added[0].Title, store.added[1].Title)
		}
	})

	t.Run("json carries explicit items", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store, &fakeEmbedder{})
		data := []byte(`[{"title":"a","content":"x"},{"title":"b","content":"y","category":"faq"}]`)
		n, err := svc.IngestFile(context.Background(), "items.json", data, "docs")
		if err != nil {
			t.Fatalf("IngestFile: %v", err)
		}
		if n != 2 {
			t.Fatalf("added %d items, want 2", n)
		}
		if store.added[0].Category != "docs" || store.added[1].Category != "faq" {
			t.Fatalf("categories = %q, %q", store.added[0].Category, store.added[1].Category)
		}
	})

	t.Run("unsupported extension rejected", func(t *testing.T) {
		svc := newTestService(newFakeStore(), &fakeEmbedder{})
		if _, err := svc.IngestFile(context.Background(), "report.pdf", []byte("x"), ""); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("err = %v, want ErrValidation", err)
		}
	})
}

func TestSplitFragments(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"empty", "   \n\n  ", 0},
		{"single short", "hello world", 1},
		{"two big paragraphs", strings.Repeat("a", 900) + "\n\n" + strings.Repeat("b", 900), 2},
		{"small paragraphs merge", "one\n\ntwo\n\nthree", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := splitFragments(tt.content, fragmentTargetRunes); len(got) != tt.want {
				t.Fatalf("got %d fragments, want %d", len(got), tt.want)
			}
		})
	}
}
