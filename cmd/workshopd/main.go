package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Rule timezones must resolve on hosts without a zoneinfo database.
	_ "time/tzdata"

	"workshop-access-backend/config"
	"workshop-access-backend/internal/api"
	"workshop-access-backend/internal/core"
	"workshop-access-backend/internal/db"
	"workshop-access-backend/internal/events"
	"workshop-access-backend/internal/lock"
	"workshop-access-backend/internal/logger"
	"workshop-access-backend/internal/store"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("configuration loaded", "path", configPath)

	// Initialize database
	gormDB, err := db.Init(&cfg.Database, log)
	if err != nil {
		log.Fatal("failed to initialize database", "error", err)
	}

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)

	locker, closeLocker, err := newLocker(ctx, cfg.Lock, log)
	if err != nil {
		log.Fatal("failed to initialize lock backend", "backend", cfg.Lock.Backend, "error", err)
	}
	defer closeLocker()

	svc := core.NewService(appStore, locker, cfg.Scheduling, log)

	// Relay outbox events in the background
	relay := events.NewRelay(cfg.Events, appStore, events.NewLogPublisher(log), log)
	go relay.Run(ctx)

	// Initialize router
	router := api.NewRouter(svc, cfg.Server, log)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		log.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server ListenAndServe failed", "error", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	log.Info("shutdown signal received, stopping services")
	cancel()

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Info("server gracefully stopped")
}

// newLocker builds the configured lock backend and a matching close func.
func newLocker(ctx context.Context, cfg config.LockConfig, log *logger.Logger) (lock.Locker, func(), error) {
	switch cfg.Backend {
	case "redis":
		rdb, err := lock.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using redis lock backend", "addr", cfg.RedisAddr, "ttl", cfg.TTL.String())
		return lock.NewRedisLocker(rdb, cfg.TTL, log), func() { _ = rdb.Close() }, nil
	default:
		log.Info("using in-process lock backend")
		return lock.NewKeyedMutex(), func() {}, nil
	}
}
