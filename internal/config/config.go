package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	AdminToken         string
	CORSAllowedOrigins []string

	CurrencyLabel         string
	DeliveryFeeBase       int64
	FreeDeliveryThreshold int64

	CartTTL         time.Duration
	CatalogCacheTTL time.Duration
	SummaryCacheTTL time.Duration
	IdempotencyTTL  time.Duration

	RateLimitPerMinute int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		AdminToken:         k.String("ADMIN_TOKEN"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		CurrencyLabel:         valueOrDefault(k.String("CURRENCY_LABEL"), "FCFA"),
		DeliveryFeeBase:       parseMoney(k.String("DELIVERY_FEE_BASE"), 1500),
		FreeDeliveryThreshold: parseMoney(k.String("FREE_DELIVERY_THRESHOLD"), 12000),

		CartTTL:         parseDuration(k.String("CART_TTL"), "168h"),
		CatalogCacheTTL: parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		SummaryCacheTTL: parseDuration(k.String("SUMMARY_CACHE_TTL"), "2m"),
		IdempotencyTTL:  parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		RateLimitPerMinute: parseInt(k.String("RATE_LIMIT_PER_MINUTE"), 120),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.AdminToken == "" && cfg.AppEnv == "production" {
		return nil, errors.New("ADMIN_TOKEN is required in production")
	}
	if cfg.DeliveryFeeBase < 0 {
		return nil, errors.New("DELIVERY_FEE_BASE must not be negative")
	}
	if cfg.FreeDeliveryThreshold < 0 {
		return nil, errors.New("FREE_DELIVERY_THRESHOLD must not be negative")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseMoney(value string, fallback int64) int64 {
	base := strings.TrimSpace(value)
	if base == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(base, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseInt(value string, fallback int) int {
	base := strings.TrimSpace(value)
	if base == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(base)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
