// Package bots manages embeddable chat-widget configurations and renders
// the loader script sites paste into their pages.
package bots

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
	Create(ctx context.Context, bot *models.Bot) error
	Get(ctx context.Context, id string) (*models.Bot, error)
	Update(ctx context.Context, bot *models.Bot) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]models.Bot, error)
	Count(ctx context.Context) (int, error)
	CountKnowledgeEnabled(ctx context.Context) (int, error)
}

type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Input carries the writable fields of a bot.
type Input struct {
	Name                 string `json:"name"`
	Description          string `json:"description"`
	Avatar               string `json:"avatar"`
	Position             string `json:"position"`
	Size                 string `json:"size"`
	PrimaryColor         string `json:"primary_color"`
	GreetingMessage      string `json:"greeting_message"`
	KnowledgeBaseEnabled bool   `json:"knowledge_base_enabled"`
}

func (in *Input) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Position, validation.In("bottom-right", "bottom-left", "top-right", "top-left")),
		validation.Field(&in.Size, validation.In("small", "medium", "large")),
		validation.Field(&in.PrimaryColor, validation.Length(0, 20)),
	)
}

// defaults fills unset widget options so every stored bot renders.
func (in *Input) defaults() {
	if in.Position == "" {
		in.Position = "bottom-right"
	}
	if in.Size == "" {
		in.Size = "medium"
	}
	if in.PrimaryColor == "" {
		in.PrimaryColor = "#4F46E5"
	}
	if in.GreetingMessage == "" {
		in.GreetingMessage = "Hi! How can I help you today?"
	}
}

// Create stores a new bot.
func (s *Service) Create(ctx context.Context, in *Input) (*models.Bot, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	in.defaults()

	bot := &models.Bot{
		ID:                   uuid.NewString(),
		Name:                 in.Name,
		Description:          in.Description,
		Avatar:               in.Avatar,
		Position:             in.Position,
		Size:                 in.Size,
		PrimaryColor:         in.PrimaryColor,
		GreetingMessage:      in.GreetingMessage,
		KnowledgeBaseEnabled: in.KnowledgeBaseEnabled,
		CreatedAt:            time.Now().UTC(),
	}
	if err := s.store.Create(ctx, bot); err != nil {
		return nil, fmt.Errorf("storing bot: %w", err)
	}
	return bot, nil
}

// Get returns one bot.
func (s *Service) Get(ctx context.Context, id string) (*models.Bot, error) {
	return s.store.Get(ctx, id)
}

// Update replaces a bot's configuration.
func (s *Service) Update(ctx context.Context, id string, in *Input) (*models.Bot, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	in.defaults()

	bot, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	bot.Name = in.Name
	bot.Description = in.Description
	bot.Avatar = in.Avatar
	bot.Position = in.Position
	bot.Size = in.Size
	bot.PrimaryColor = in.PrimaryColor
	bot.GreetingMessage = in.GreetingMessage
	bot.KnowledgeBaseEnabled = in.KnowledgeBaseEnabled
	bot.UpdatedAt = &now

	if err := s.store.Update(ctx, bot); err != nil {
		return nil, fmt.Errorf("updating bot: %w", err)
	}
	return bot, nil
}

// Delete removes one bot.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// List returns a page of bots.
func (s *Service) List(ctx context.Context, page, size int) (models.Page[models.Bot], error) {
	var zero models.Page[models.Bot]
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 10
	}
	items, err := s.store.List(ctx, size, (page-1)*size)
	if err != nil {
		return zero, fmt.Errorf("listing bots: %w", err)
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return zero, fmt.Errorf("counting bots: %w", err)
	}
	return models.NewPage(items, total, page, size), nil
}

// Stats summarizes bot usage for the dashboard.
type Stats struct {
	TotalBots             int `json:"total_bots"`
	KnowledgeEnabledBots  int `json:"knowledge_enabled_bots"`
	KnowledgeDisabledBots int `json:"knowledge_disabled_bots"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting bots: %w", err)
	}
	enabled, err := s.store.CountKnowledgeEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting knowledge-enabled bots: %w", err)
	}
	return &Stats{
		TotalBots:             total,
		KnowledgeEnabledBots:  enabled,
		KnowledgeDisabledBots: total - enabled,
	}, nil
}
