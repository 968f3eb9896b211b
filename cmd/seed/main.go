// Command seed loads sample knowledge documents and coding rules from a YAML
// file so a fresh install has something to retrieve against.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/config"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/knowledge"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/ollama"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/repository/postgres"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/rules"
)

// seedFile is the YAML shape of a sample-data file.
type seedFile struct {
	Knowledge []knowledge.Input `yaml:"knowledge"`
	Rules     []rules.Input     `yaml:"rules"`
}

func main() {
	dataPath := flag.String("data", "seed/sample_data.yaml", "Path to the YAML sample data file")
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	// SAFETY: never drop production tables from a seed script.
	if cfg.Environment == "prod" && *dropTables {
		log.Fatalf("BLOCKED: refusing --drop-tables in production environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log.Printf("Seeding database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Println("Dropping tables...")
		if err := dropAllTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
	}

	if err := postgres.EnsureSchema(ctx, pool, tables, cfg.EmbeddingDim); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}
	log.Println("Schema ready")

	data, err := os.ReadFile(*dataPath)
	if err != nil {
		log.Fatalf("Failed to read sample data: %v", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		log.Fatalf("Failed to parse sample data: %v", err)
	}

	llm := ollama.New(ollama.Config{
		BaseURL:        cfg.OllamaBaseURL,
		ChatModel:      cfg.ChatModel,
		EmbeddingModel: cfg.EmbeddingModel,
		EmbeddingDim:   cfg.EmbeddingDim,
		KeepAlive:      cfg.KeepAlive,
		ChatTimeout:    cfg.ChatTimeout,
		EmbedTimeout:   cfg.EmbedTimeout,
	}, logger)

	repoConfig := &postgres.RepositoryConfig{Pool: pool, Tables: tables, Logger: logger}
	knowledgeService := knowledge.NewService(postgres.NewKnowledgeRepository(repoConfig), llm, cfg.RetrievalTimeout, logger)
	rulesService := rules.NewService(postgres.NewCodingRuleRepository(repoConfig), logger)

	for i := range seed.Knowledge {
		item, err := knowledgeService.Add(ctx, &seed.Knowledge[i])
		if err != nil {
			log.Fatalf("Failed to seed knowledge %q: %v", seed.Knowledge[i].Title, err)
		}
		log.Printf("Seeded knowledge: %s (%s)", item.Title, item.ID)
	}
	for i := range seed.Rules {
		rule, err := rulesService.Create(ctx, &seed.Rules[i])
		if err != nil {
			log.Fatalf("Failed to seed rule %q: %v", seed.Rules[i].Title, err)
		}
		log.Printf("Seeded rule: %s (%s)", rule.Title, rule.ID)
	}

	log.Printf("Done: %d knowledge documents, %d rules", len(seed.Knowledge), len(seed.Rules))
}

func dropAllTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	for _, table := range []string{tables.Knowledge, tables.CodingRules, tables.Bots} {
		if _, err := pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s CASCADE`, table)); err != nil {
			return fmt.Errorf("dropping %s: %w", table, err)
		}
	}
	return nil
}
