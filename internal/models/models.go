// Package models defines the entities shared across services and handlers.
package models

import "time"

// ChatTurn is a single turn of conversation history. Immutable once built.
type ChatTurn struct {
	Role    string `json:"role"` // user, assistant or system
	Content string `json:"content"`
}

// KnowledgeItem is an entry of the vector-backed knowledge base.
type KnowledgeItem struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Category      string     `json:"category"`
	Tags          []string   `json:"tags"`
	ContentLength int        `json:"content_length"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// RetrievedDocument is a knowledge item returned by similarity search.
// Similarity is the normalized [0,1] relevance derived from the store's raw
// distance; Distance is kept for debugging.
type RetrievedDocument struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Category   string    `json:"category"`
	Tags       []string  `json:"tags"`
	Similarity float64   `json:"similarity"`
	Distance   float64   `json:"distance"`
	CreatedAt  time.Time `json:"created_at"`
}

// CodingRule is a stored code-review rule that can be applied to submitted code.
type CodingRule struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Language    string     `json:"language"`
	Content     string     `json:"content"`
	Example     string     `json:"example"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags"`
	FileName    string     `json:"file_name,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Bot is an embeddable chat widget configuration.
type Bot struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Description          string     `json:"description"`
	Avatar               string     `json:"avatar"`
	Position             string     `json:"position"`
	Size                 string     `json:"size"`
	PrimaryColor         string     `json:"primary_color"`
	GreetingMessage      string     `json:"greeting_message"`
	KnowledgeBaseEnabled bool       `json:"knowledge_base_enabled"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            *time.Time `json:"updated_at,omitempty"`
}

// Page holds the sections (paginated list) shape shared by list endpoints.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Pages int `json:"pages"`
}

// NewPage assembles a Page, computing the page count from total and size.
func NewPage[T any](items []T, total, page, size int) Page[T] {
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	return Page[T]{Items: items, Total: total, Page: page, Size: size, Pages: pages}
}
