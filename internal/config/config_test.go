package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":            "postgres://localhost:5432/patisserie",
		"REDIS_URL":               "redis://localhost:6379/0",
		"APP_ENV":                 "",
		"PORT":                    "",
		"DELIVERY_FEE_BASE":       "",
		"FREE_DELIVERY_THRESHOLD": "",
		"CURRENCY_LABEL":          "",
		"CART_TTL":                "",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppEnv != "development" {
		t.Errorf("AppEnv = %q", cfg.AppEnv)
	}
	if cfg.HTTPAddr() != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr())
	}
	if cfg.DeliveryFeeBase != 1500 || cfg.FreeDeliveryThreshold != 12000 {
		t.Errorf("delivery defaults = %d / %d", cfg.DeliveryFeeBase, cfg.FreeDeliveryThreshold)
	}
	if cfg.CurrencyLabel != "FCFA" {
		t.Errorf("CurrencyLabel = %q", cfg.CurrencyLabel)
	}
	if cfg.CartTTL != 168*time.Hour {
		t.Errorf("CartTTL = %s", cfg.CartTTL)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "redis://localhost:6379/0",
	})
	if err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}
}

func TestLoadRequiresAdminTokenInProduction(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL": "postgres://localhost:5432/patisserie",
		"REDIS_URL":    "redis://localhost:6379/0",
		"APP_ENV":      "production",
		"ADMIN_TOKEN":  "",
	})
	if err == nil {
		t.Fatal("expected error for missing ADMIN_TOKEN")
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":            "postgres://localhost:5432/patisserie",
		"REDIS_URL":               "redis://localhost:6379/0",
		"DELIVERY_FEE_BASE":       "2000",
		"FREE_DELIVERY_THRESHOLD": "15000",
		"RATE_LIMIT_PER_MINUTE":   "30",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DeliveryFeeBase != 2000 || cfg.FreeDeliveryThreshold != 15000 {
		t.Errorf("delivery = %d / %d", cfg.DeliveryFeeBase, cfg.FreeDeliveryThreshold)
	}
	if cfg.RateLimitPerMinute != 30 {
		t.Errorf("RateLimitPerMinute = %d", cfg.RateLimitPerMinute)
	}
}
