package config

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Fatalf("default port = %s", cfg.Port)
	}
	if cfg.AnchorMarker != "GELINHO" {
		t.Fatalf("default anchor marker = %s", cfg.AnchorMarker)
	}
	if !cfg.MarkupMultiplier.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("default markup = %s", cfg.MarkupMultiplier)
	}
	if cfg.LowStockSoldRatio != 0.8 {
		t.Fatalf("default low-stock ratio = %f", cfg.LowStockSoldRatio)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("default token ttl = %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.SyncIntervalMS != 500 || cfg.SyncMaxRetries != 5 {
		t.Fatalf("default sync tuning = %d/%d", cfg.SyncIntervalMS, cfg.SyncMaxRetries)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("address = %s", cfg.Address())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("ANCHOR_PRODUCT_MARKER", "PICOLE")
	t.Setenv("MARKUP_MULTIPLIER", "2.5")
	t.Setenv("LOW_STOCK_SOLD_RATIO", "0.9")
	t.Setenv("SYNC_INTERVAL_MS", "100")

	cfg := Load()
	if cfg.Port != "9999" {
		t.Fatalf("port override = %s", cfg.Port)
	}
	if cfg.AnchorMarker != "PICOLE" {
		t.Fatalf("marker override = %s", cfg.AnchorMarker)
	}
	want, _ := decimal.NewFromString("2.5")
	if !cfg.MarkupMultiplier.Equal(want) {
		t.Fatalf("markup override = %s", cfg.MarkupMultiplier)
	}
	if cfg.LowStockSoldRatio != 0.9 {
		t.Fatalf("ratio override = %f", cfg.LowStockSoldRatio)
	}
	if cfg.SyncIntervalMS != 100 {
		t.Fatalf("sync interval override = %d", cfg.SyncIntervalMS)
	}
}

func TestLoadRejectsBadTuning(t *testing.T) {
	t.Setenv("MARKUP_MULTIPLIER", "-3")
	t.Setenv("LOW_STOCK_SOLD_RATIO", "1.5")
	t.Setenv("SYNC_MAX_RETRIES", "zero")

	cfg := Load()
	if !cfg.MarkupMultiplier.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("negative markup must fall back, got %s", cfg.MarkupMultiplier)
	}
	if cfg.LowStockSoldRatio != 0.8 {
		t.Fatalf("out-of-range ratio must fall back, got %f", cfg.LowStockSoldRatio)
	}
	if cfg.SyncMaxRetries != 5 {
		t.Fatalf("unparsable retries must fall back, got %d", cfg.SyncMaxRetries)
	}
}
