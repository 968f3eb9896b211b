package scraper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/domain"
)

func newTestScraper() *Scraper {
	return New(5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const samplePage = `<!doctype html>
<html>
<head>
  <title>Shipping policy</title>
  <meta name="description" content="How and when we ship.">
  <meta name="keywords" content="shipping, delivery , returns">
  <script>console.log("tracking")</script>
</head>
<body>
  <nav>Home | About</nav>
  <main>
    <h1>Shipping policy</h1>
    <p>Orders ship   within two business days.</p>
  </main>
  <footer>copyright</footer>
</body>
</html>`

func TestScrapeExtractsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent header")
		}
		io.WriteString(w, samplePage)
	}))
	defer srv.Close()

	page, err := newTestScraper().Scrape(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if page.Title != "Shipping policy" {
		t.Errorf("Title = %q", page.Title)
	}
	if page.Description != "How and when we ship." {
		t.Errorf("Description = %q", page.Description)
	}
	if len(page.Keywords) != 3 || page.Keywords[1] != "delivery" {
		t.Errorf("Keywords = %v", page.Keywords)
	}
	if !strings.Contains(page.Content, "Orders ship within two business days.") {
		t.Errorf("Content = %q", page.Content)
	}
	for _, junk := range []string{"console.log", "Home | About", "copyright"} {
		if strings.Contains(page.Content, junk) {
			t.Errorf("Content contains stripped element text %q", junk)
		}
	}
}

func TestScrapeForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestScraper().Scrape(context.Background(), srv.URL)
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if !strings.Contains(err.Error(), "blocks automated access") {
		t.Fatalf("error not friendly: %v", err)
	}
}

func TestScrapeNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newTestScraper().Scrape(context.Background(), srv.URL+"/missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url string
		ok  bool
	}{
		{"https://example.com/docs", true},
		{"http://example.com", true},
		{"ftp://example.com", false},
		{"example.com", false},
		{"", false},
		{"   ", false},
	}
	for _, tt := range tests {
		_, err := validateURL(tt.url)
		if tt.ok && err != nil {
			t.Errorf("validateURL(%q) = %v, want nil", tt.url, err)
		}
		if !tt.ok && !errors.Is(err, domain.ErrValidation) {
			t.Errorf("validateURL(%q) = %v, want ErrValidation", tt.url, err)
		}
	}
}

func TestCollapseWhitespace(t *testing.T) {
	got := collapseWhitespace("  a \t b \n\n\n c  ")
	if got != "a b\nc" {
		t.Fatalf("got %q", got)
	}
}
