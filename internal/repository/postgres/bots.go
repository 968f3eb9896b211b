package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/domain"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/models"
)

// BotRepository stores embeddable bot configurations.
type BotRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewBotRepository creates a new bot repository
func NewBotRepository(config *RepositoryConfig) *BotRepository {
	return &BotRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

const botColumns = `id, name, description, avatar, position, size, primary_color, greeting_message, knowledge_base_enabled, created_at, updated_at`

func scanBot(row interface{ Scan(...any) error }) (*models.Bot, error) {
	var bot models.Bot
	err := row.Scan(
		&bot.ID,
		&bot.Name,
		&bot.Description,
		&bot.Avatar,
		&bot.Position,
		&bot.Size,
		&bot.PrimaryColor,
		&bot.GreetingMessage,
		&bot.KnowledgeBaseEnabled,
		&bot.CreatedAt,
		&bot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

// Create inserts a new bot
func (r *BotRepository) Create(ctx context.Context, bot *models.Bot) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, description, avatar, position, size, primary_color, greeting_message, knowledge_base_enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, r.tables.Bots)

	_, err := r.pool.Exec(ctx, query,
		bot.ID,
		bot.Name,
		bot.Description,
		bot.Avatar,
		bot.Position,
		bot.Size,
		bot.PrimaryColor,
		bot.GreetingMessage,
		bot.KnowledgeBaseEnabled,
		bot.CreatedAt,
	)
	if err != nil {
		if isPgDuplicateError(err) {
			return fmt.Errorf("bot '%s': %w", bot.Name, domain.ErrConflict)
		}
		return fmt.Errorf("create bot: %w", err)
	}

	return nil
}

// Get retrieves a bot by ID
func (r *BotRepository) Get(ctx context.Context, id string) (*models.Bot, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, botColumns, r.tables.Bots)

	bot, err := scanBot(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("bot %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get bot: %w", err)
	}

	return bot, nil
}

// Update rewrites a bot's configuration
func (r *BotRepository) Update(ctx context.Context, bot *models.Bot) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, description = $2, avatar = $3, position = $4, size = $5,
		    primary_color = $6, greeting_message = $7, knowledge_base_enabled = $8,
		    updated_at = $9
		WHERE id = $10
	`, r.tables.Bots)

	result, err := r.pool.Exec(ctx, query,
		bot.Name,
		bot.Description,
		bot.Avatar,
		bot.Position,
		bot.Size,
		bot.PrimaryColor,
		bot.GreetingMessage,
		bot.KnowledgeBaseEnabled,
		time.Now(),
		bot.ID,
	)
	if err != nil {
		return fmt.Errorf("update bot: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("bot %s: %w", bot.ID, domain.ErrNotFound)
	}

	return nil
}

// Delete removes a bot by ID
func (r *BotRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Bots)

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete bot: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("bot %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// List returns bots newest first.
func (r *BotRepository) List(ctx context.Context, limit, offset int) ([]models.Bot, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, botColumns, r.tables.Bots)

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list bots: %w", err)
	}
	defer rows.Close()

	var bots []models.Bot
	for rows.Next() {
		bot, err := scanBot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bot: %w", err)
		}
		bots = append(bots, *bot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bots: %w", err)
	}

	return bots, nil
}

// Count returns the total number of bots.
func (r *BotRepository) Count(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM %s`, r.tables.Bots)

	var count int
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count bots: %w", err)
	}
	return count, nil
}

// CountKnowledgeEnabled returns how many bots have the knowledge base enabled.
func (r *BotRepository) CountKnowledgeEnabled(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE knowledge_base_enabled`, r.tables.Bots)

	var count int
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count knowledge-enabled bots: %w", err)
	}
	return count, nil
}
