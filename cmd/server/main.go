package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/bots"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/chat"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/config"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/handler"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/knowledge"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/middleware"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/ollama"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/repository/postgres"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/rules"
	"github.com/LUOJIYAS/ollama-customer-service-bot/internal/scraper"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
		"chat_model", cfg.ChatModel,
	)

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)
	if err := postgres.EnsureSchema(ctx, pool, tables, cfg.EmbeddingDim); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}
	logger.Info("database ready", "max_conns", 25, "min_conns", 5)

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	knowledgeRepo := postgres.NewKnowledgeRepository(repoConfig)
	rulesRepo := postgres.NewCodingRuleRepository(repoConfig)
	botsRepo := postgres.NewBotRepository(repoConfig)

	llm := ollama.New(ollama.Config{
		BaseURL:        cfg.OllamaBaseURL,
		ChatModel:      cfg.ChatModel,
		EmbeddingModel: cfg.EmbeddingModel,
		EmbeddingDim:   cfg.EmbeddingDim,
		KeepAlive:      cfg.KeepAlive,
		ChatTimeout:    cfg.ChatTimeout,
		EmbedTimeout:   cfg.EmbedTimeout,
	}, logger)

	knowledgeService := knowledge.NewService(knowledgeRepo, llm, cfg.RetrievalTimeout, logger)
	chatService := chat.NewService(llm, knowledgeService, cfg.AnswerLanguage, logger)
	rulesService := rules.NewService(rulesRepo, logger)
	botsService := bots.NewService(botsRepo, logger)
	pageScraper := scraper.New(cfg.ScrapeTimeout, logger)

	chatHandler := handler.NewChatHandler(chatService, rulesService, logger)
	knowledgeHandler := handler.NewKnowledgeHandler(knowledgeService, logger)
	rulesHandler := handler.NewRulesHandler(rulesService, chatService, logger)
	botsHandler := handler.NewBotsHandler(botsService, chatService, logger)
	webHandler := handler.NewWebHandler(pageScraper, knowledgeService, logger)
	healthHandler := handler.NewHealthHandler(llm, pool, logger)

	logger.Info("services initialized")

	// Router (Go 1.22+ enhanced patterns). Specific paths are registered
	// before parameterized ones so /search does not match {id}.
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", healthHandler.Root)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /api/health", healthHandler.Status)
	mux.HandleFunc("GET /api/status", healthHandler.Status)
	mux.HandleFunc("GET /api/models", healthHandler.Models)

	// Chat
	mux.HandleFunc("POST /api/chat", chatHandler.StreamChat)
	mux.HandleFunc("POST /api/bot-chat", botsHandler.BotChat)

	// Knowledge base
	mux.HandleFunc("POST /api/knowledge", knowledgeHandler.Add)
	mux.HandleFunc("GET /api/knowledge", knowledgeHandler.List)
	mux.HandleFunc("GET /api/knowledge/search", knowledgeHandler.Search)
	mux.HandleFunc("POST /api/knowledge/search", knowledgeHandler.Search)
	mux.HandleFunc("GET /api/knowledge/stats", knowledgeHandler.Stats)
	mux.HandleFunc("GET /api/knowledge/categories", knowledgeHandler.Categories)
	mux.HandleFunc("POST /api/knowledge/upload", knowledgeHandler.Upload)
	mux.HandleFunc("POST /api/knowledge/batch-delete", knowledgeHandler.DeleteBatch)
	mux.HandleFunc("POST /api/knowledge/web", webHandler.Import)
	mux.HandleFunc("GET /api/knowledge/{id}", knowledgeHandler.Get)
	mux.HandleFunc("PUT /api/knowledge/{id}", knowledgeHandler.Update)
	mux.HandleFunc("DELETE /api/knowledge/{id}", knowledgeHandler.Delete)

	// Coding rules
	mux.HandleFunc("POST /api/coding-rules", rulesHandler.Create)
	mux.HandleFunc("GET /api/coding-rules", rulesHandler.List)
	mux.HandleFunc("GET /api/coding-rules/search", rulesHandler.Search)
	mux.HandleFunc("GET /api/coding-rules/stats", rulesHandler.Stats)
	mux.HandleFunc("GET /api/coding-rules/languages", rulesHandler.Languages)
	mux.HandleFunc("GET /api/coding-rules/categories", rulesHandler.Categories)
	mux.HandleFunc("POST /api/coding-rules/upload", rulesHandler.Upload)
	mux.HandleFunc("GET /api/coding-rules/{id}", rulesHandler.Get)
	mux.HandleFunc("PUT /api/coding-rules/{id}", rulesHandler.Update)
	mux.HandleFunc("DELETE /api/coding-rules/{id}", rulesHandler.Delete)
	mux.HandleFunc("POST /api/coding-rules/{id}/apply", rulesHandler.Apply)

	// Bots and the embeddable widget
	mux.HandleFunc("POST /api/bots", botsHandler.Create)
	mux.HandleFunc("GET /api/bots", botsHandler.List)
	mux.HandleFunc("GET /api/bots/stats", botsHandler.Stats)
	mux.HandleFunc("GET /api/bots/{id}", botsHandler.Get)
	mux.HandleFunc("PUT /api/bots/{id}", botsHandler.Update)
	mux.HandleFunc("DELETE /api/bots/{id}", botsHandler.Delete)
	mux.HandleFunc("GET /api/bots/{id}/embed-script", botsHandler.EmbedScript)
	mux.HandleFunc("GET /api/bot-embed/{id}", botsHandler.EmbedScript)
	mux.HandleFunc("POST /api/bots/{id}/chat", botsHandler.Chat)
	mux.HandleFunc("POST /api/bots/{id}/chat/stream", botsHandler.ChatStream)

	// Web scraping
	mux.HandleFunc("POST /api/scrape", webHandler.Scrape)
	mux.HandleFunc("POST /api/web/parse", webHandler.Scrape)
	mux.HandleFunc("POST /api/scrape/import", webHandler.Import)

	// Middleware chain: CORS → Recovery → Routes. CORS stays outermost so
	// OPTIONS pre-flights never hit the routes.
	var h http.Handler = mux
	h = middleware.Recovery(logger)(h)

	// CORS_ORIGINS=* opens the API to any site, which the embeddable bot
	// widget needs; wildcard origins cannot also allow credentials.
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Last-Event-ID"},
		AllowCredentials: cfg.CORSOrigins != "*",
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
