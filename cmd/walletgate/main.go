package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/vietddude/stylelog"

	"walletgate/internal/api"
	"walletgate/internal/core/config"
	"walletgate/internal/core/worker"
	"walletgate/internal/explorer"
	"walletgate/internal/infra/storage"
	"walletgate/internal/infra/storage/memory"
	"walletgate/internal/infra/storage/postgres"
	"walletgate/internal/locator"
	"walletgate/internal/scheduler"
	"walletgate/internal/wcrypto"

	redisclient "walletgate/internal/infra/redis"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	migrationsDir := flag.String("migrations", "migrations", "Path to goose migrations")
	isDebug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	if *isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}
	stylelog.InitDefault(
		&tint.Options{
			Level:      slogLevel,
			TimeFormat: time.RFC3339,
		})
	slog.Info("Logger initialized", "level", slogLevel.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var (
		tasks storage.TaskRepository
		links storage.WalletLinkRepository
		db    *postgres.DB
	)
	if cfg.Database.URL != "" {
		db, err = postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			slog.Error("Failed to init database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.Migrate(*migrationsDir); err != nil {
			slog.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
		db.StartMetricsCollector(ctx)

		tasks = postgres.NewTaskRepo(db)
		links = postgres.NewWalletLinkRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		tasks = memory.NewTaskRepo(store)
		links = memory.NewWalletLinkRepo(store)
		slog.Warn("No database configured, using in-memory storage")
	}

	// Optional cross-instance cycle lock
	var cycleLock scheduler.CycleLock
	if cfg.Redis.URL != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Error("Failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		cycleLock = redisClient
		slog.Info("Cycle leader lock enabled")
	}

	// Wallet address codec
	codec, err := wcrypto.New(cfg.Proof.EncryptionKey)
	if err != nil {
		slog.Error("Failed to init wallet codec", "error", err)
		os.Exit(1)
	}

	// Verification engine
	explorerClient := explorer.New(explorer.Config{
		Endpoint:    cfg.Explorer.Endpoint,
		PageSize:    cfg.Explorer.PageSize,
		CallTimeout: cfg.Explorer.CallTimeout.Std(),
		Backoff: explorer.BackoffConfig{
			MaxAttempts: cfg.Explorer.MaxAttempts,
			BaseDelay:   cfg.Explorer.BaseDelay.Std(),
		},
	})
	proofLocator := locator.New(explorerClient)
	sched := scheduler.New(
		scheduler.Config{
			TargetWallet:    cfg.Proof.TargetWallet,
			PollInterval:    cfg.Proof.PollInterval.Std(),
			BatchSize:       cfg.Proof.BatchSize,
			MaxTaskAttempts: cfg.Proof.MaxTaskAttempts,
		},
		tasks, links, proofLocator, codec, cycleLock,
	)
	go sched.Start(ctx)

	// Housekeeping
	pruner := worker.NewPruner(cfg.Proof.RetentionPeriod.Std(), tasks)
	go pruner.Start(ctx)

	// HTTP surface
	var health api.HealthChecker
	if db != nil {
		health = db
	}
	server := api.NewServer(api.Config{
		Port:           cfg.Server.Port,
		DeadlineOffset: cfg.Proof.DeadlineOffset.Std(),
	}, tasks, codec, health)
	go func() {
		slog.Info("API server listening", "port", cfg.Server.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server failed", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Walletgate stopped gracefully")
}
