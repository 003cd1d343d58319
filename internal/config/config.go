package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// openAIPlaceholderKey ships in example .env files and means "not configured".
const openAIPlaceholderKey = "your-openai-key"

// Config holds application configuration values loaded from environment variables.
type Config struct {
	HTTPPort        string
	DatabaseURL     string // empty selects the in-memory store
	JWTSecret       string
	TokenExpiration time.Duration

	OllamaURL        string
	OllamaModel      string
	OllamaEmbedModel string

	OpenAIKey        string // empty when unset or left at the placeholder
	OpenAIBaseURL    string
	OpenAIModel      string
	OpenAIEmbedModel string

	// CapabilityTimeout bounds every call to an external generation or embedding backend.
	CapabilityTimeout time.Duration

	SlackBotToken      string
	SlackChannelID     string
	NotionToken        string
	NotionParentPageID string

	CORSAllowedOrigins []string
}

// LoadConfig loads configuration from environment variables.
// It looks for a .env file first, then checks actual environment variables.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// Not fatal: production reads the real environment.
		log.Println("Warning: Could not load .env file. Using environment variables only.", err)
	}

	openAIKey := strings.TrimSpace(getEnv("OPENAI_API_KEY", ""))
	if openAIKey == openAIPlaceholderKey {
		openAIKey = ""
	}

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		JWTSecret:       getEnv("JWT_SECRET", "default-super-secret-key"), // CHANGE THIS IN PRODUCTION!
		TokenExpiration: time.Hour * time.Duration(getEnvInt("JWT_EXPIRATION_HOURS", 24)),

		OllamaURL:        getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:      getEnv("OLLAMA_MODEL", "llama3.2"),
		OllamaEmbedModel: getEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),

		OpenAIKey:        openAIKey,
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		OpenAIEmbedModel: getEnv("OPENAI_EMBED_MODEL", "text-embedding-ada-002"),

		CapabilityTimeout: time.Second * time.Duration(getEnvInt("CAPABILITY_TIMEOUT_SECONDS", 30)),

		SlackBotToken:      getEnv("SLACK_BOT_TOKEN", ""),
		SlackChannelID:     getEnv("SLACK_CHANNEL_ID", ""),
		NotionToken:        getEnv("NOTION_TOKEN", ""),
		NotionParentPageID: getEnv("NOTION_PARENT_PAGE_ID", ""),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
	}

	if cfg.DatabaseURL == "" {
		log.Println("WARN [Config] DATABASE_URL not set; conversations are kept in memory and lost on restart.")
	}

	log.Printf("Loaded config: Port=%s, DB_URL=***, TokenExp=%s, OpenAI=%t, Slack=%t, Notion=%t, CapabilityTimeout=%s",
		cfg.HTTPPort, cfg.TokenExpiration, cfg.OpenAIKey != "", cfg.SlackBotToken != "", cfg.NotionToken != "", cfg.CapabilityTimeout)

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Env variable %s not set, using default: %s", key, fallback)
	return fallback
}

// getEnvInt parses a positive integer variable, falling back on absence or bad input.
func getEnvInt(key string, fallback int) int {
	raw := getEnv(key, strconv.Itoa(fallback))
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("Warning: Invalid %s '%s', using default %d. Error: %v", key, raw, fallback, err)
		return fallback
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
