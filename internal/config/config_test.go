package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SETTLEMENT_CURRENCY", "")
	t.Setenv("PRICE_MAX_AGE", "")
	t.Setenv("SNAPSHOT_INTERVAL", "")
	t.Setenv("API_RATE_LIMIT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SettlementCurrency != "EUR" {
		t.Errorf("expected EUR, got %s", cfg.SettlementCurrency)
	}
	if cfg.PriceMaxAge != 96*time.Hour {
		t.Errorf("expected 96h, got %s", cfg.PriceMaxAge)
	}
	if cfg.SnapshotInterval != 24*time.Hour {
		t.Errorf("expected 24h, got %s", cfg.SnapshotInterval)
	}
	if cfg.APIRateLimit != 20 {
		t.Errorf("expected 20 req/s, got %v", cfg.APIRateLimit)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SETTLEMENT_CURRENCY", "usd")
	t.Setenv("POSITION_CACHE_TTL", "90s")
	t.Setenv("PRICE_REFRESH_RATE", "2.5")
	t.Setenv("SNAPSHOT_INTERVAL", "0s")

	cfg, _ := Load()
	if cfg.SettlementCurrency != "USD" {
		t.Errorf("expected USD, got %s", cfg.SettlementCurrency)
	}
	if cfg.PositionCacheTTL != 90*time.Second {
		t.Errorf("expected 90s, got %s", cfg.PositionCacheTTL)
	}
	if cfg.PriceRefreshRate != 2.5 {
		t.Errorf("expected 2.5, got %v", cfg.PriceRefreshRate)
	}
	if cfg.SnapshotInterval != 0 {
		t.Errorf("expected disabled interval, got %s", cfg.SnapshotInterval)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("PRICE_MAX_AGE", "four days")
	t.Setenv("PRICE_REFRESH_RATE", "-1")

	cfg, _ := Load()
	if cfg.PriceMaxAge != 96*time.Hour {
		t.Errorf("expected fallback 96h, got %s", cfg.PriceMaxAge)
	}
	if cfg.PriceRefreshRate != 5 {
		t.Errorf("expected fallback 5, got %v", cfg.PriceRefreshRate)
	}
}
