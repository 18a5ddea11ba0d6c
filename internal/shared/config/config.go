package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the gateway
type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Provider API Keys
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string

	// Management API
	AdminToken string

	// Rate Limiting
	DefaultRateLimit int

	// Offering cache
	OfferingCacheTTLSeconds int

	// Default top-up amount in credit-cents
	TopUpAmount int64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		RedisURL:                getEnv("REDIS_URL", "redis://localhost:6379"),
		OpenAIAPIKey:            getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:         getEnv("ANTHROPIC_API_KEY", ""),
		GeminiAPIKey:            getEnv("GEMINI_API_KEY", ""),
		AdminToken:              getEnv("ADMIN_TOKEN", ""),
		DefaultRateLimit:        getEnvInt("DEFAULT_RATE_LIMIT", 100),
		OfferingCacheTTLSeconds: getEnvInt("OFFERING_CACHE_TTL_SECONDS", 60),
		TopUpAmount:             int64(getEnvInt("TOPUP_AMOUNT", 1000)),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	// At least one provider API key is required
	if cfg.OpenAIAPIKey == "" && cfg.AnthropicAPIKey == "" && cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("at least one provider API key is required (OPENAI_API_KEY, ANTHROPIC_API_KEY, or GEMINI_API_KEY)")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
