// Package rules manages stored coding rules: CRUD, search, and ingestion
// from uploaded rule files.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/domain"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/models"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, rule *models.CodingRule) error
	Get(ctx context.Context, id string) (*models.CodingRule, error)
	Update(ctx context.Context, rule *models.CodingRule) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int, category, language string) ([]models.CodingRule, error)
	Count(ctx context.Context, category, language string) (int, error)
	Search(ctx context.Context, term string, limit int) ([]models.CodingRule, error)
	Languages(ctx context.Context) ([]string, error)
	Categories(ctx context.Context) ([]string, error)
}

type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Input carries the writable fields of a coding rule.
type Input struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Language    string   `json:"language"`
	Content     string   `json:"content"`
	Example     string   `json:"example"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	FileName    string   `json:"file_name,omitempty"`
}

func (in *Input) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Content, validation.Required),
		validation.Field(&in.Language, validation.Length(0, 50)),
		validation.Field(&in.Category, validation.Length(0, 100)),
	)
}

// Create stores a new rule.
func (s *Service) Create(ctx context.Context, in *Input) (*models.CodingRule, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	rule := &models.CodingRule{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Language:    in.Language,
		Content:     in.Content,
		Example:     in.Example,
		Category:    in.Category,
		Tags:        in.Tags,
		FileName:    in.FileName,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("storing rule: %w", err)
	}
	return rule, nil
}

// Get returns one rule.
func (s *Service) Get(ctx context.Context, id string) (*models.CodingRule, error) {
	return s.store.Get(ctx, id)
}

// Update replaces a rule's fields.
func (s *Service) Update(ctx context.Context, id string, in *Input) (*models.CodingRule, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	rule, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	rule.Title = in.Title
	rule.Description = in.Description
	rule.Language = in.Language
	rule.Content = in.Content
	rule.Example = in.Example
	rule.Category = in.Category
	rule.Tags = in.Tags
	if in.FileName != "" {
		rule.FileName = in.FileName
	}
	rule.UpdatedAt = &now

	if err := s.store.Update(ctx, rule); err != nil {
		return nil, fmt.Errorf("updating rule: %w", err)
	}
	return rule, nil
}

// Delete removes one rule.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// List returns a page of rules, optionally filtered by category and language.
func (s *Service) List(ctx context.Context, page, size int, category, language string) (models.Page[models.CodingRule], error) {
	var zero models.Page[models.CodingRule]
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 10
	}
	items, err := s.store.List(ctx, size, (page-1)*size, category, language)
	if err != nil {
		return zero, fmt.Errorf("listing rules: %w", err)
	}
	total, err := s.store.Count(ctx, category, language)
	if err != nil {
		return zero, fmt.Errorf("counting rules: %w", err)
	}
	return models.NewPage(items, total, page, size), nil
}

// Search matches rules by free text across title, description, content,
// language and category.
func (s *Service) Search(ctx context.Context, term string, limit int) ([]models.CodingRule, error) {
	if term == "" {
		return nil, fmt.Errorf("%w: search term is required", domain.ErrValidation)
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.store.Search(ctx, term, limit)
}

// Stats summarizes the rule store.
type Stats struct {
	TotalRules      int `json:"total_rules"`
	TotalLanguages  int `json:"total_languages"`
	TotalCategories int `json:"total_categories"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.store.Count(ctx, "", "")
	if err != nil {
		return nil, fmt.Errorf("count rules: %w", err)
	}
	languages, err := s.store.Languages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list languages: %w", err)
	}
	categories, err := s.store.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return &Stats{
		TotalRules:      total,
		TotalLanguages:  len(languages),
		TotalCategories: len(categories),
	}, nil
}

// Languages lists the distinct rule languages in use.
func (s *Service) Languages(ctx context.Context) ([]string, error) {
	return s.store.Languages(ctx)
}

// Categories lists the distinct rule categories in use.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.store.Categories(ctx)
}

// IngestFile parses an uploaded rule file and stores every rule in it.
func (s *Service) IngestFile(ctx context.Context, name string, data []byte) ([]*models.CodingRule, error) {
	inputs, err := ParseFile(name, data)
	if err != nil {
		return nil, err
	}
	created := make([]*models.CodingRule, 0, len(inputs))
	for _, in := range inputs {
		if in.FileName == "" {
			in.FileName = name
		}
		rule, err := s.Create(ctx, in)
		if err != nil {
			return created, err
		}
		created = append(created, rule)
	}
	s.logger.Info("ingested rule file", "file", name, "rules", len(created))
	return created, nil
}
