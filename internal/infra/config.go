package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	BaseURL     string
	DatabaseURL string
	JWTSecret   string
	GeoIPDBPath string

	// Image generation providers, tried in order.
	PreferredImageProvider string
	ReplicateAPIToken      string
	ReplicateModelVersion  string
	GoogleCloudProjectID   string
	GoogleCloudLocation    string
	GoogleCloudCredentials string
	GeminiAPIKey           string
	GeminiModel            string
	HuggingFaceAPIKey      string

	StripeSecretKey string
	GenerationLimit int
	AdminEmails     []string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		PreferredImageProvider: strings.ToLower(os.Getenv("PREFERRED_IMAGE_PROVIDER")),
		ReplicateAPIToken:      os.Getenv("REPLICATE_API_TOKEN"),
		ReplicateModelVersion:  os.Getenv("REPLICATE_MODEL_VERSION"),
		GoogleCloudProjectID:   os.Getenv("GOOGLE_CLOUD_PROJECT_ID"),
		GoogleCloudLocation:    getEnv("GOOGLE_CLOUD_LOCATION", "us-central1"),
		GoogleCloudCredentials: os.Getenv("GOOGLE_CLOUD_CREDENTIALS"),
		GeminiAPIKey:           os.Getenv("GEMINI_API_KEY"),
		GeminiModel:            getEnv("GEMINI_MODEL", "gemini-2.0-flash-preview-image-generation"),
		HuggingFaceAPIKey:      os.Getenv("HUGGINGFACE_API_KEY"),

		StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),
		GenerationLimit: getEnvInt("GENERATION_LIMIT", 1),
		AdminEmails:     splitEmails(os.Getenv("ADMIN_EMAILS")),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.GenerationLimit < 1 {
		return nil, fmt.Errorf("GENERATION_LIMIT must be at least 1")
	}

	return cfg, nil
}

// IsAdminEmail reports whether the given email is on the admin allowlist.
// Comparison is case-insensitive.
func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, admin := range c.AdminEmails {
		if admin == email {
			return true
		}
	}
	return false
}

func splitEmails(raw string) []string {
	var emails []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			emails = append(emails, part)
		}
	}
	return emails
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
