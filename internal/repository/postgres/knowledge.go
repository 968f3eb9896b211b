package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/domain"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/models"
)

// Match is a document returned by similarity search together with its raw
// distance. Lower distance means closer; converting distance to a similarity
// score is the caller's responsibility.
type Match struct {
	Item     models.KnowledgeItem
	Distance float64
}

// KnowledgeRepository stores knowledge documents and their embeddings in a
// pgvector-backed table.
type KnowledgeRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewKnowledgeRepository creates a new knowledge repository
func NewKnowledgeRepository(config *RepositoryConfig) *KnowledgeRepository {
	return &KnowledgeRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Add inserts a document with its embedding. Existing IDs are overwritten.
func (r *KnowledgeRepository) Add(ctx context.Context, item *models.KnowledgeItem, embedding []float32) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, title, content, category, tags, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, content = EXCLUDED.content,
		    category = EXCLUDED.category, tags = EXCLUDED.tags,
		    embedding = EXCLUDED.embedding, updated_at = now()
	`, r.tables.Knowledge)

	_, err := r.pool.Exec(ctx, query,
		item.ID,
		item.Title,
		item.Content,
		item.Category,
		item.Tags,
		pgvector.NewVector(embedding),
		item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("add knowledge document: %w", err)
	}

	return nil
}

// Get retrieves a document by ID
func (r *KnowledgeRepository) Get(ctx context.Context, id string) (*models.KnowledgeItem, error) {
	query := fmt.Sprintf(`
		SELECT id, title, content, category, tags, created_at, updated_at
		FROM %s
		WHERE id = $1
	`, r.tables.Knowledge)

	var item models.KnowledgeItem
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&item.ID,
		&item.Title,
		&item.Content,
		&item.Category,
		&item.Tags,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("knowledge document %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get knowledge document: %w", err)
	}

	item.ContentLength = utf8.RuneCountInString(item.Content)
	return &item, nil
}

// Update rewrites a document's fields and embedding
func (r *KnowledgeRepository) Update(ctx context.Context, item *models.KnowledgeItem, embedding []float32) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $1, content = $2, category = $3, tags = $4,
		    embedding = $5, updated_at = $6
		WHERE id = $7
	`, r.tables.Knowledge)

	result, err := r.pool.Exec(ctx, query,
		item.Title,
		item.Content,
		item.Category,
		item.Tags,
		pgvector.NewVector(embedding),
		time.Now(),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update knowledge document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("knowledge document %s: %w", item.ID, domain.ErrNotFound)
	}

	return nil
}

// Delete removes a document by ID
func (r *KnowledgeRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Knowledge)

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete knowledge document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("knowledge document %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// DeleteBatch removes the given documents and returns how many existed.
func (r *KnowledgeRepository) DeleteBatch(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, r.tables.Knowledge)

	result, err := r.pool.Exec(ctx, query, ids)
	if err != nil {
		return 0, fmt.Errorf("batch delete knowledge documents: %w", err)
	}

	return int(result.RowsAffected()), nil
}

// List returns documents ordered by creation time, newest first.
// An empty category means no filter.
func (r *KnowledgeRepository) List(ctx context.Context, limit, offset int, category string) ([]models.KnowledgeItem, error) {
	query := fmt.Sprintf(`
		SELECT id, title, content, category, tags, created_at, updated_at
		FROM %s
		WHERE ($3 = '' OR category = $3)
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, r.tables.Knowledge)

	rows, err := r.pool.Query(ctx, query, limit, offset, category)
	if err != nil {
		return nil, fmt.Errorf("list knowledge documents: %w", err)
	}
	defer rows.Close()

	var items []models.KnowledgeItem
	for rows.Next() {
		var item models.KnowledgeItem
		if err := rows.Scan(
			&item.ID,
			&item.Title,
			&item.Content,
			&item.Category,
			&item.Tags,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan knowledge document: %w", err)
		}
		item.ContentLength = utf8.RuneCountInString(item.Content)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list knowledge documents: %w", err)
	}

	return items, nil
}

// Count returns the number of documents, optionally filtered by category.
func (r *KnowledgeRepository) Count(ctx context.Context, category string) (int, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE ($1 = '' OR category = $1)`, r.tables.Knowledge)

	var count int
	if err := r.pool.QueryRow(ctx, query, category).Scan(&count); err != nil {
		return 0, fmt.Errorf("count knowledge documents: %w", err)
	}
	return count, nil
}

// Query runs a cosine-distance similarity search. Results arrive in
// distance-ascending order. An empty category means no filter.
func (r *KnowledgeRepository) Query(ctx context.Context, embedding []float32, k int, category string) ([]Match, error) {
	query := fmt.Sprintf(`
		SELECT id, title, content, category, tags, created_at,
		       embedding <=> $1 AS distance
		FROM %s
		WHERE embedding IS NOT NULL AND ($3 = '' OR category = $3)
		ORDER BY embedding <=> $1
		LIMIT $2
	`, r.tables.Knowledge)

	rows, err := r.pool.Query(ctx, query, pgvector.NewVector(embedding), k, category)
	if err != nil {
		return nil, fmt.Errorf("query knowledge documents: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(
			&m.Item.ID,
			&m.Item.Title,
			&m.Item.Content,
			&m.Item.Category,
			&m.Item.Tags,
			&m.Item.CreatedAt,
			&m.Distance,
		); err != nil {
			return nil, fmt.Errorf("scan similarity match: %w", err)
		}
		m.Item.ContentLength = utf8.RuneCountInString(m.Item.Content)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query knowledge documents: %w", err)
	}

	return matches, nil
}

// Categories returns the distinct document categories, sorted.
func (r *KnowledgeRepository) Categories(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT DISTINCT category FROM %s ORDER BY category`, r.tables.Knowledge)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list knowledge categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list knowledge categories: %w", err)
	}

	return categories, nil
}

// CategoryCounts returns the number of documents per category.
func (r *KnowledgeRepository) CategoryCounts(ctx context.Context) (map[string]int, error) {
	query := fmt.Sprintf(`SELECT category, count(*) FROM %s GROUP BY category`, r.tables.Knowledge)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count knowledge categories: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		counts[category] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count knowledge categories: %w", err)
	}

	return counts, nil
}

// TagCounts returns the usage count per tag, most used first,
// capped at the given limit.
func (r *KnowledgeRepository) TagCounts(ctx context.Context, limit int) (map[string]int, error) {
	query := fmt.Sprintf(`
		SELECT tag, count(*) AS uses
		FROM %s, unnest(tags) AS tag
		WHERE tag <> ''
		GROUP BY tag
		ORDER BY uses DESC
		LIMIT $1
	`, r.tables.Knowledge)

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("count knowledge tags: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var tag string
		var uses int
		if err := rows.Scan(&tag, &uses); err != nil {
			return nil, fmt.Errorf("scan tag count: %w", err)
		}
		counts[tag] = uses
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count knowledge tags: %w", err)
	}

	return counts, nil
}
