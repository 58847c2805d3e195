package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	Env                   string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AuthSecret            string
	AccessTokenTTLMinutes int
	SeedAdminPassword     string

	// Inventory inference tuning. The anchor marker designates the single
	// product whose stock is back-calculated from residual revenue.
	AnchorMarker      string
	MarkupMultiplier  decimal.Decimal
	LowStockSoldRatio float64

	// SyncIntervalMS is the outbox worker poll interval.
	SyncIntervalMS int
	SyncMaxRetries int
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	markup, err := decimal.NewFromString(getEnv("MARKUP_MULTIPLIER", "2"))
	if err != nil || markup.Sign() <= 0 {
		markup = decimal.NewFromInt(2)
	}
	lowRatio, err := strconv.ParseFloat(getEnv("LOW_STOCK_SOLD_RATIO", "0.8"), 64)
	if err != nil || lowRatio <= 0 || lowRatio >= 1 {
		lowRatio = 0.8
	}
	syncInterval, err := strconv.Atoi(getEnv("SYNC_INTERVAL_MS", "500"))
	if err != nil || syncInterval < 1 {
		syncInterval = 500
	}
	syncRetries, err := strconv.Atoi(getEnv("SYNC_MAX_RETRIES", "5"))
	if err != nil || syncRetries < 1 {
		syncRetries = 5
	}

	return Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		Env:                   getEnv("APP_ENV", "dev"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		SeedAdminPassword:     getEnv("SEED_ADMIN_PASSWORD", "admin123"),
		AnchorMarker:          getEnv("ANCHOR_PRODUCT_MARKER", "GELINHO"),
		MarkupMultiplier:      markup,
		LowStockSoldRatio:     lowRatio,
		SyncIntervalMS:        syncInterval,
		SyncMaxRetries:        syncRetries,
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
