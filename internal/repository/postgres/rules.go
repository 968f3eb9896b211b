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

// CodingRuleRepository stores coding rules in a relational table.
type CodingRuleRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewCodingRuleRepository creates a new coding rule repository
func NewCodingRuleRepository(config *RepositoryConfig) *CodingRuleRepository {
	return &CodingRuleRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

const codingRuleColumns = `id, title, description, language, content, example, category, tags, file_name, created_at, updated_at`

func scanCodingRule(row interface{ Scan(...any) error }) (*models.CodingRule, error) {
	var rule models.CodingRule
	err := row.Scan(
		&rule.ID,
		&rule.Title,
		&rule.Description,
		&rule.Language,
		&rule.Content,
		&rule.Example,
		&rule.Category,
		&rule.Tags,
		&rule.FileName,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// Create inserts a new coding rule
func (r *CodingRuleRepository) Create(ctx context.Context, rule *models.CodingRule) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, title, description, language, content, example, category, tags, file_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, r.tables.CodingRules)

	_, err := r.pool.Exec(ctx, query,
		rule.ID,
		rule.Title,
		rule.Description,
		rule.Language,
		rule.Content,
		rule.Example,
		rule.Category,
		rule.Tags,
		rule.FileName,
		rule.CreatedAt,
	)
	if err != nil {
		if isPgDuplicateError(err) {
			return fmt.Errorf("coding rule '%s': %w", rule.Title, domain.ErrConflict)
		}
		return fmt.Errorf("create coding rule: %w", err)
	}

	return nil
}

// Get retrieves a coding rule by ID
func (r *CodingRuleRepository) Get(ctx context.Context, id string) (*models.CodingRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, codingRuleColumns, r.tables.CodingRules)

	rule, err := scanCodingRule(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("coding rule %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get coding rule: %w", err)
	}

	return rule, nil
}

// Update rewrites a coding rule's fields
func (r *CodingRuleRepository) Update(ctx context.Context, rule *models.CodingRule) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $1, description = $2, language = $3, content = $4,
		    example = $5, category = $6, tags = $7, updated_at = $8
		WHERE id = $9
	`, r.tables.CodingRules)

	result, err := r.pool.Exec(ctx, query,
		rule.Title,
		rule.Description,
		rule.Language,
		rule.Content,
		rule.Example,
		rule.Category,
		rule.Tags,
		time.Now(),
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("update coding rule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("coding rule %s: %w", rule.ID, domain.ErrNotFound)
	}

	return nil
}

// Delete removes a coding rule by ID
func (r *CodingRuleRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.CodingRules)

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete coding rule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("coding rule %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// List returns rules newest first. Empty filter values mean no filter.
func (r *CodingRuleRepository) List(ctx context.Context, limit, offset int, category, language string) ([]models.CodingRule, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE ($3 = '' OR category = $3) AND ($4 = '' OR language = $4)
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, codingRuleColumns, r.tables.CodingRules)

	rows, err := r.pool.Query(ctx, query, limit, offset, category, language)
	if err != nil {
		return nil, fmt.Errorf("list coding rules: %w", err)
	}
	defer rows.Close()

	var rules []models.CodingRule
	for rows.Next() {
		rule, err := scanCodingRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coding rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list coding rules: %w", err)
	}

	return rules, nil
}

// Count returns the number of rules matching the filters.
func (r *CodingRuleRepository) Count(ctx context.Context, category, language string) (int, error) {
	query := fmt.Sprintf(`
		SELECT count(*) FROM %s
		WHERE ($1 = '' OR category = $1) AND ($2 = '' OR language = $2)
	`, r.tables.CodingRules)

	var count int
	if err := r.pool.QueryRow(ctx, query, category, language).Scan(&count); err != nil {
		return 0, fmt.Errorf("count coding rules: %w", err)
	}
	return count, nil
}

// Search performs a case-insensitive substring search over the textual fields.
func (r *CodingRuleRepository) Search(ctx context.Context, term string, limit int) ([]models.CodingRule, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE title ILIKE $1 OR description ILIKE $1 OR content ILIKE $1
		   OR language ILIKE $1 OR category ILIKE $1
		ORDER BY created_at DESC
		LIMIT $2
	`, codingRuleColumns, r.tables.CodingRules)

	rows, err := r.pool.Query(ctx, query, "%"+term+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search coding rules: %w", err)
	}
	defer rows.Close()

	var rules []models.CodingRule
	for rows.Next() {
		rule, err := scanCodingRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coding rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search coding rules: %w", err)
	}

	return rules, nil
}

// Languages returns the distinct rule languages, sorted.
func (r *CodingRuleRepository) Languages(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "language")
}

// Categories returns the distinct rule categories, sorted.
func (r *CodingRuleRepository) Categories(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "category")
}

func (r *CodingRuleRepository) distinct(ctx context.Context, column string) ([]string, error) {
	query := fmt.Sprintf(`SELECT DISTINCT %s FROM %s ORDER BY %s`, column, r.tables.CodingRules, column)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list distinct %s: %w", column, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", column, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list distinct %s: %w", column, err)
	}

	return values, nil
}
