// Command rules-syncer runs the background worker that reconciles the
// Redis predicate cache with the rules table.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alissonpelizaro/rules-system/internal/cache"
	"github.com/alissonpelizaro/rules-system/internal/config"
	"github.com/alissonpelizaro/rules-system/internal/database"
	"github.com/alissonpelizaro/rules-system/internal/logger"
	"github.com/alissonpelizaro/rules-system/internal/observability"
	"github.com/alissonpelizaro/rules-system/internal/store"
	"github.com/alissonpelizaro/rules-system/internal/syncer"
)

func main() {
	if err := run(); err != nil {
		slog.Error("rules-syncer exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(&cfg.App)
	slog.SetDefault(log)
	cfg.LogConfig(log)

	if !cfg.Syncer.Enabled {
		log.Warn("syncer is disabled, exiting")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	// The syncer always talks to Redis: its whole job is keeping the
	// shared cache consistent for the API processes.
	redisClient, err := cache.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	rules := store.NewPostgresRuleStore(pool)
	predicates := cache.NewRedisPredicateStore(redisClient, log)

	obsServer := observability.NewServer(log, &cfg.Observability,
		database.NewHealthChecker(pool),
		cache.NewHealthChecker(redisClient),
	)
	obsServer.Start()

	svc := syncer.New(log, cfg.Syncer, rules, predicates)
	err = svc.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if shutdownErr := obsServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error("observability server shutdown failed", slog.String("error", shutdownErr.Error()))
	}

	log.Info("rules syncer stopped")
	return err
}
