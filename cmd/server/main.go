package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"barcaixa/internal/config"
	"barcaixa/internal/httpapi"
	"barcaixa/internal/inventory"
	"barcaixa/internal/ledger"
	"barcaixa/internal/session"
	"barcaixa/internal/store"
	"barcaixa/internal/store/memory"
	pgstore "barcaixa/internal/store/postgres"
	"barcaixa/internal/sync"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("dotenv: %v", err)
	}
	cfg := config.Load()

	logger, err := buildLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var remote store.RemoteStore
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			sugar.Fatalw("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", "err", err)
		}
		remote = pg
		closers = append(closers, pg.Close)
		sugar.Infow("remote store: postgres")
	} else {
		remote = memory.NewSeeded()
		sugar.Infow("remote store: in-memory (seeded)")
	}

	journal := sync.Journal(sync.NoopJournal{})
	if cfg.RedisAddr != "" {
		redisJournal := sync.NewRedisJournal(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisJournal.Ping(ctx); err != nil {
			sugar.Warnw("redis unavailable, outbox journal disabled", "err", err)
		} else {
			journal = redisJournal
			closers = append(closers, redisJournal.Close)
			sugar.Infow("outbox journal: redis")
		}
	} else {
		sugar.Infow("outbox journal: noop")
	}

	outbox := sync.New(remote, journal, sugar,
		time.Duration(cfg.SyncIntervalMS)*time.Millisecond, cfg.SyncMaxRetries)
	if err := outbox.Restore(ctx); err != nil {
		sugar.Warnw("outbox restore failed", "err", err)
	}

	sessions := session.NewManager(sugar)
	engine := inventory.NewEngine(inventory.Config{
		AnchorMarker:      cfg.AnchorMarker,
		MarkupMultiplier:  cfg.MarkupMultiplier,
		LowStockSoldRatio: cfg.LowStockSoldRatio,
	})

	svc := ledger.New(remote, outbox, sessions, engine, sugar)
	svc.Load(ctx, cfg.SeedAdminPassword)

	runCtx, stopOutbox := context.WithCancel(context.Background())
	go outbox.Run(runCtx)

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, cfg.SeedAdminPassword)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		sugar.Infow("bar ledger listening", "addr", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server error", "err", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("shutdown error", "err", err)
	}

	// Final delivery attempt for anything still queued; journaled ops that
	// miss this window are restored on next boot.
	outbox.Flush(shutdownCtx)
	stopOutbox()

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			sugar.Warnw("close error", "err", err)
		}
	}

	sugar.Infow("server stopped")
}

func buildLogger(env string) (*zap.Logger, error) {
	if env == "prod" || env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
