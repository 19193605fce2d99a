package internal

import (
	"crypto/rand"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// Completion API configuration
	OpenAIAPIKey     string
	OpenAIModel      string
	AIRequestTimeout time.Duration

	// Free tier daily card limit. This is the startup default; the live
	// value is read through DailyFreeLimit so it can be tuned without a
	// restart.
	FreeDaily int

	// Stripe configuration. When the secret key or price ID is missing the
	// billing handlers fall back to STRIPE_LINK or a "not configured" notice.
	StripeSecretKey string
	StripePriceID   string
	StripeLink      string

	// Admin override code for unlocking Pro without checkout. Empty disables it.
	AdminProCode string

	// Application base URL (for checkout redirect construction)
	BaseURL string

	// Session cookie signing secret. Generated at startup when SECRET_KEY is
	// unset, which means sessions do not survive a restart in that mode.
	SessionSecret []byte

	TemplatesDir string

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 10000),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		AIRequestTimeout: getEnvDuration("AI_REQUEST_TIMEOUT", 30*time.Second),

		FreeDaily: getEnvInt("FREE_DAILY", 5),

		StripeSecretKey: getEnv("STRIPE_SECRET_KEY", ""),
		StripePriceID:   getEnv("STRIPE_PRICE_ID", ""),
		StripeLink:      getEnv("STRIPE_LINK", ""),

		AdminProCode: getEnv("ADMIN_PRO_CODE", ""),

		BaseURL: getEnv("BASE_URL", "http://localhost:10000"),

		TemplatesDir: getEnv("TEMPLATES_DIR", "web/templates"),

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	if secret := os.Getenv("SECRET_KEY"); secret != "" {
		cfg.SessionSecret = []byte(secret)
	} else {
		cfg.SessionSecret = make([]byte, 32)
		if _, err := rand.Read(cfg.SessionSecret); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
	}

	return cfg, nil
}

// UpgradeAvailable reports whether the upgrade call-to-action should be shown
// at all: a configured price ID or a static payment link is enough, even when
// the secret key is missing and live checkout stays disabled.
func (c *Config) UpgradeAvailable() bool {
	return c.StripePriceID != "" || c.StripeLink != ""
}

// DailyFreeLimit returns the current free-tier daily limit. FREE_DAILY is
// re-read on every call so the limit can be adjusted at runtime.
func (c *Config) DailyFreeLimit() int {
	if value := os.Getenv("FREE_DAILY"); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return c.FreeDaily
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
