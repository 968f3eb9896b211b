package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the extension, tables and indexes if they do not exist.
// The embedding column dimensionality must match the embedding backend; it is
// fixed at table creation time.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames, embeddingDim int) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				content TEXT NOT NULL,
				category TEXT NOT NULL DEFAULT 'general',
				tags TEXT[] NOT NULL DEFAULT '{}',
				embedding vector(%d),
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ
			)`, tables.Knowledge, embeddingDim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_category ON %s(category)`,
			tables.Knowledge, tables.Knowledge),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_created_at ON %s(created_at)`,
			tables.Knowledge, tables.Knowledge),

		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				language TEXT NOT NULL,
				content TEXT NOT NULL,
				example TEXT NOT NULL DEFAULT '',
				category TEXT NOT NULL DEFAULT 'general',
				tags TEXT[] NOT NULL DEFAULT '{}',
				file_name TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ
			)`, tables.CodingRules),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_language ON %s(language)`,
			tables.CodingRules, tables.CodingRules),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_category ON %s(category)`,
			tables.CodingRules, tables.CodingRules),

		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				avatar TEXT NOT NULL DEFAULT '/default-bot-avatar.png',
				position TEXT NOT NULL DEFAULT 'bottom-right',
				size TEXT NOT NULL DEFAULT 'medium',
				primary_color TEXT NOT NULL DEFAULT '#1890ff',
				greeting_message TEXT NOT NULL DEFAULT '',
				knowledge_base_enabled BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ
			)`, tables.Bots),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	return nil
}
