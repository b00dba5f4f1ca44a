package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Default values used when the environment does not override them.
const (
	defaultPort           = "8000"
	defaultFrontendURL    = "http://localhost:3000"
	defaultPlaidEnv       = "sandbox"
	defaultLLMProvider    = "groq"
	defaultGroqModel      = "llama-3.3-70b-versatile"
	defaultGeminiModel    = "gemini-2.0-flash"
	defaultRateLimit      = 100
	defaultCurrentBalance = 500.0
)

// Config holds the application configuration.
type Config struct {
	Port           string
	DatabaseURL    string
	FrontendURL    string
	JWTSecret      string
	EncryptionKey  string
	LogLevel       string
	RateLimit      int
	CurrentBalance float64

	PlaidClientID string
	PlaidSecret   string
	PlaidEnv      string

	LLMProvider     string
	GroqAPIKey      string
	GroqModel       string
	GeminiAPIKey    string
	GeminiModel     string
	AnthropicAPIKey string

	ForecastURL string

	SendGridAPIKey string
	SenderEmail    string
	UserEmail      string

	SerpAPIKey string
}

// Load reads the configuration from the environment. DATABASE_URL and
// JWT_SECRET are required.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", defaultPort),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		FrontendURL:     getEnv("FRONTEND_URL", defaultFrontendURL),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		EncryptionKey:   os.Getenv("DATA_ENCRYPTION_KEY"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		RateLimit:       getEnvInt("RATE_LIMIT_PER_MINUTE", defaultRateLimit),
		CurrentBalance:  getEnvFloat("CURRENT_BALANCE", defaultCurrentBalance),
		PlaidClientID:   os.Getenv("PLAID_CLIENT_ID"),
		PlaidSecret:     os.Getenv("PLAID_SECRET"),
		PlaidEnv:        strings.ToLower(getEnv("PLAID_ENV", defaultPlaidEnv)),
		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", defaultLLMProvider)),
		GroqAPIKey:      os.Getenv("GROQ_API_KEY"),
		GroqModel:       getEnv("GROQ_MODEL", defaultGroqModel),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnv("GEMINI_MODEL", defaultGeminiModel),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		ForecastURL:     strings.TrimRight(os.Getenv("FORECAST_URL"), "/"),
		SendGridAPIKey:  os.Getenv("SENDGRID_API_KEY"),
		SenderEmail:     os.Getenv("SENDER_EMAIL"),
		UserEmail:       os.Getenv("USER_EMAIL"),
		SerpAPIKey:      os.Getenv("SERPAPI_KEY"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if cfg.EncryptionKey != "" && len(cfg.EncryptionKey) != 32 {
		return nil, fmt.Errorf("DATA_ENCRYPTION_KEY must be exactly 32 characters")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}
