package internal

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/compliq/internal/ai"
	"github.com/DukeRupert/compliq/internal/billing"
	"github.com/DukeRupert/compliq/internal/storage"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Env         string `validate:"required,oneof=development staging production test"`
	Port        int    `validate:"min=1,max=65535"`
	LogLevel    string `validate:"oneof=debug info warn error"`
	DatabaseUrl string `validate:"required"`

	// Apply pending migrations at startup
	MigrateOnStart bool

	// Public base URL, used for Stripe redirect URLs
	BaseURL string `validate:"required,url"`

	// JWT_SECRET verifies bearer tokens issued by the identity provider (HS256)
	JWTSecret string `validate:"required,min=16"`

	CORSAllowedOrigins []string

	// Storage Configuration
	StorageProvider string `validate:"oneof=local r2"`

	// Local Storage (development)
	LocalStoragePath string // Base directory for local file storage
	LocalStorageURL  string // Base URL for accessing local files

	// R2 Storage (production)
	R2AccountID       string `validate:"required_if=StorageProvider r2"`
	R2AccessKeyID     string `validate:"required_if=StorageProvider r2"`
	R2SecretAccessKey string `validate:"required_if=StorageProvider r2"`
	R2BucketName      string `validate:"required_if=StorageProvider r2"`
	R2PublicURL       string // Optional custom domain URL

	// AI Provider Configuration
	AIProvider       string `validate:"oneof=openai anthropic mock"`
	OpenAIAPIKey     string `validate:"required_if=AIProvider openai"`
	OpenAIModel      string
	AnthropicAPIKey  string `validate:"required_if=AIProvider anthropic"`
	AnthropicModel   string
	AIMaxTokens      int     `validate:"min=1"`
	AITemperature    float64 `validate:"gte=0,lte=2"`
	AIMaxRetries     int     `validate:"min=1"`
	AIRetryBaseDelay time.Duration
	AIRequestTimeout time.Duration

	// Stripe Billing Configuration
	// In development, billing endpoints answer 503 if the secret key is empty.
	StripeSecretKey     string // Stripe API secret key (sk_test_... or sk_live_...)
	StripeWebhookSecret string // Stripe webhook signing secret (whsec_...)

	// Stripe Price IDs for subscription plans
	StripeStarterMonthlyPriceID      string
	StripeStarterYearlyPriceID       string
	StripeProfessionalMonthlyPriceID string
	StripeProfessionalYearlyPriceID  string
	StripeEnterpriseMonthlyPriceID   string
	StripeEnterpriseYearlyPriceID    string

	// Cron spec for re-syncing subscriptions whose billing period ended
	SubscriptionSweepSchedule string `validate:"required"`
	SubscriptionSweepBatch    int    `validate:"min=1"`

	// Per-user document processing rate limit
	RateLimitProcessPerMinute int `validate:"min=1"`

	// Largest document accepted by the process endpoint, before quota checks
	MaxDocumentMB float64 `validate:"gt=0"`

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string `validate:"required_with=MetricsUsername"`
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:         getEnv("ENV", "development"),
		Port:        getEnvInt("PORT", 8080),
		LogLevel:    getEnv("LOG_LEVEL", "debug"),
		DatabaseUrl: os.Getenv("DATABASE_URL"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		MigrateOnStart: getEnvBool("MIGRATE_ON_START", true),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("STORAGE_LOCAL_PATH", "./storage"),
		LocalStorageURL:  getEnv("STORAGE_LOCAL_URL", "http://localhost:8080/files"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		// AI provider defaults
		AIProvider:       getEnv("AI_PROVIDER", "mock"),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", ""),
		AIMaxTokens:      getEnvInt("AI_MAX_TOKENS", 4000),
		AITemperature:    getEnvFloat("AI_TEMPERATURE", 0.7),
		AIMaxRetries:     getEnvInt("AI_MAX_RETRIES", 3),
		AIRetryBaseDelay: getEnvDuration("AI_RETRY_BASE_DELAY", 1*time.Second),
		AIRequestTimeout: getEnvDuration("AI_TIMEOUT", 90*time.Second),

		// Stripe billing (optional)
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		StripeStarterMonthlyPriceID:      getEnv("STRIPE_PRICE_STARTER_MONTHLY", ""),
		StripeStarterYearlyPriceID:       getEnv("STRIPE_PRICE_STARTER_YEARLY", ""),
		StripeProfessionalMonthlyPriceID: getEnv("STRIPE_PRICE_PROFESSIONAL_MONTHLY", ""),
		StripeProfessionalYearlyPriceID:  getEnv("STRIPE_PRICE_PROFESSIONAL_YEARLY", ""),
		StripeEnterpriseMonthlyPriceID:   getEnv("STRIPE_PRICE_ENTERPRISE_MONTHLY", ""),
		StripeEnterpriseYearlyPriceID:    getEnv("STRIPE_PRICE_ENTERPRISE_YEARLY", ""),

		SubscriptionSweepSchedule: getEnv("SUBSCRIPTION_SWEEP_SCHEDULE", "@every 1h"),
		SubscriptionSweepBatch:    getEnvInt("SUBSCRIPTION_SWEEP_BATCH", 100),

		RateLimitProcessPerMinute: getEnvInt("RATE_LIMIT_PROCESS_PER_MINUTE", 10),
		MaxDocumentMB:             getEnvFloat("MAX_DOCUMENT_MB", 10),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags and reports the first problem by its
// environment variable name.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config validation: %w", err)
	}

	fe := verrs[0]
	name := envName(fe.Field())
	switch fe.Tag() {
	case "required", "required_if", "required_with":
		return fmt.Errorf("%s is required", name)
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got: %v", name, fe.Param(), fe.Value())
	default:
		return fmt.Errorf("%s is invalid (%s=%s), got: %v", name, fe.Tag(), fe.Param(), fe.Value())
	}
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// BillingEnabled reports whether Stripe is configured.
func (c *Config) BillingEnabled() bool {
	return c.StripeSecretKey != ""
}

// Prices returns the Stripe price table configuration.
func (c *Config) Prices() billing.PriceConfig {
	return billing.PriceConfig{
		StarterMonthlyPriceID:      c.StripeStarterMonthlyPriceID,
		StarterYearlyPriceID:       c.StripeStarterYearlyPriceID,
		ProfessionalMonthlyPriceID: c.StripeProfessionalMonthlyPriceID,
		ProfessionalYearlyPriceID:  c.StripeProfessionalYearlyPriceID,
		EnterpriseMonthlyPriceID:   c.StripeEnterpriseMonthlyPriceID,
		EnterpriseYearlyPriceID:    c.StripeEnterpriseYearlyPriceID,
	}
}

// Storage returns the archive backend configuration.
func (c *Config) Storage() storage.Config {
	return storage.Config{
		Provider: c.StorageProvider,
		Local: storage.LocalConfig{
			BasePath: c.LocalStoragePath,
			BaseURL:  c.LocalStorageURL,
		},
		R2: storage.R2Config{
			AccountID:       c.R2AccountID,
			AccessKeyID:     c.R2AccessKeyID,
			SecretAccessKey: c.R2SecretAccessKey,
			BucketName:      c.R2BucketName,
			PublicURL:       c.R2PublicURL,
		},
	}
}

// AI returns the settings shared by every report generator.
func (c *Config) AI() ai.ProviderConfig {
	return ai.ProviderConfig{
		MaxTokens:      c.AIMaxTokens,
		Temperature:    float32(c.AITemperature),
		MaxRetries:     c.AIMaxRetries,
		RetryBaseDelay: c.AIRetryBaseDelay,
		RequestTimeout: c.AIRequestTimeout,
	}
}

var envNames = map[string]string{
	"Env":                              "ENV",
	"Port":                             "PORT",
	"LogLevel":                         "LOG_LEVEL",
	"DatabaseUrl":                      "DATABASE_URL",
	"BaseURL":                          "BASE_URL",
	"JWTSecret":                        "JWT_SECRET",
	"StorageProvider":                  "STORAGE_PROVIDER",
	"R2AccountID":                      "R2_ACCOUNT_ID",
	"R2AccessKeyID":                    "R2_ACCESS_KEY_ID",
	"R2SecretAccessKey":                "R2_SECRET_ACCESS_KEY",
	"R2BucketName":                     "R2_BUCKET_NAME",
	"AIProvider":                       "AI_PROVIDER",
	"OpenAIAPIKey":                     "OPENAI_API_KEY",
	"AnthropicAPIKey":                  "ANTHROPIC_API_KEY",
	"AIMaxTokens":                      "AI_MAX_TOKENS",
	"AITemperature":                    "AI_TEMPERATURE",
	"AIMaxRetries":                     "AI_MAX_RETRIES",
	"SubscriptionSweepSchedule":        "SUBSCRIPTION_SWEEP_SCHEDULE",
	"SubscriptionSweepBatch":           "SUBSCRIPTION_SWEEP_BATCH",
	"RateLimitProcessPerMinute":        "RATE_LIMIT_PROCESS_PER_MINUTE",
	"MaxDocumentMB":                    "MAX_DOCUMENT_MB",
	"MetricsPassword":                  "METRICS_PASSWORD",
	"StripeProfessionalYearlyPriceID":  "STRIPE_PRICE_PROFESSIONAL_YEARLY",
	"StripeProfessionalMonthlyPriceID": "STRIPE_PRICE_PROFESSIONAL_MONTHLY",
}

func envName(field string) string {
	if name, ok := envNames[field]; ok {
		return name
	}
	return field
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

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
