package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration. It is loaded once at startup and
// passed explicitly into constructors; nothing reads the environment after Load.
type Config struct {
	Port        string
	Environment string
	CORSOrigins string
	TablePrefix string

	// Database
	DatabaseURL string

	// Ollama backend
	OllamaBaseURL  string
	ChatModel      string
	EmbeddingModel string
	EmbeddingDim   int

	// KeepAlive is the hint forwarded to the backend so the model stays
	// loaded between requests.
	KeepAlive string

	// Timeouts. Chat is generous to absorb model cold starts; retrieval is
	// short because it degrades to empty context on failure.
	ChatTimeout      time.Duration
	EmbedTimeout     time.Duration
	RetrievalTimeout time.Duration
	ScrapeTimeout    time.Duration

	// AnswerLanguage is the natural language the assistant answers in.
	AnswerLanguage string
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:        getEnv("PORT", "8000"),
		Environment: env,
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000"),
		TablePrefix: getTablePrefix(env),

		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/support_bot"),

		OllamaBaseURL:  getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		ChatModel:      getEnv("CHAT_MODEL", "deepseek-r1:latest"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "modelscope.cn/Qwen/Qwen3-Embedding-8B-GGUF:latest"),
		EmbeddingDim:   getEnvInt("EMBEDDING_DIM", 768),

		KeepAlive: getEnv("MODEL_KEEP_ALIVE", "10m"),

		ChatTimeout:      getEnvDuration("CHAT_TIMEOUT", 60*time.Second),
		EmbedTimeout:     getEnvDuration("EMBED_TIMEOUT", 120*time.Second),
		RetrievalTimeout: getEnvDuration("RETRIEVAL_TIMEOUT", 15*time.Second),
		ScrapeTimeout:    getEnvDuration("SCRAPE_TIMEOUT", 15*time.Second),

		AnswerLanguage: getEnv("ANSWER_LANGUAGE", "Chinese"),
	}
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
