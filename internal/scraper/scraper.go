// Package scraper fetches web pages and extracts their readable text so
// pages can be imported into the knowledge base.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/domain"
)

// maxContentRunes caps extracted page text so one page cannot flood the
// knowledge base.
const maxContentRunes = 20000

// userAgent identifies the scraper; some sites reject requests without one.
const userAgent = "Mozilla/5.0 (compatible; support-bot-scraper/1.0)"

// Page is the extracted content of a scraped URL.
type Page struct {
	URL         string    `json:"url"`
	Domain      string    `json:"domain"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Keywords    []string  `json:"keywords"`
	Content     string    `json:"content"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

type Scraper struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

func New(timeout time.Duration, logger *slog.Logger) *Scraper {
	return &Scraper{
		client:  &http.Client{},
		timeout: timeout,
		logger:  logger,
	}
}

// Scrape fetches a page and extracts title, metadata and visible text.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (*Page, error) {
	target, err := validateURL(rawURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", domain.ErrValidation, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %v", domain.ErrUnavailable, target.Host, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s refused the request, the site likely blocks automated access", domain.ErrUnavailable, target.Host)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: page not found at %s", domain.ErrNotFound, rawURL)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: %s answered %d", domain.ErrUnavailable, target.Host, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing page: %v", domain.ErrUnavailable, err)
	}

	page := extract(doc)
	page.URL = target.String()
	page.Domain = target.Hostname()
	page.ScrapedAt = time.Now().UTC()

	if page.Content == "" {
		return nil, fmt.Errorf("%w: no readable text found on page", domain.ErrNotFound)
	}

	s.logger.Info("scraped page",
		"url", page.URL,
		"title", page.Title,
		"content_runes", len([]rune(page.Content)),
	)
	return page, nil
}

func extract(doc *goquery.Document) *Page {
	page := &Page{}

	page.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if page.Title == "" {
		page.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		page.Description = strings.TrimSpace(desc)
	}
	if kw, ok := doc.Find(`meta[name="keywords"]`).Attr("content"); ok {
		for _, k := range strings.Split(kw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				page.Keywords = append(page.Keywords, k)
			}
		}
	}

	// Navigation, scripts and other boilerplate carry no useful text.
	doc.Find("script, style, noscript, nav, header, footer, aside, iframe, form").Remove()

	root := doc.Find("main, article").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	page.Content = truncateRunes(collapseWhitespace(root.Text()), maxContentRunes)
	return page
}

func validateURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("%w: url is required", domain.ErrValidation)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url: %v", domain.ErrValidation, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: url must use http or https", domain.ErrValidation)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: url has no host", domain.ErrValidation)
	}
	return u, nil
}

// collapseWhitespace folds runs of whitespace into single spaces while
// keeping paragraph breaks as newlines.
func collapseWhitespace(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if folded := strings.Join(strings.Fields(line), " "); folded != "" {
			lines = append(lines, folded)
		}
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
