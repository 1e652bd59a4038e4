// Command rules-server runs the REST API of the rules system. It serves
// rule and rule-action administration plus order/payment CRUD, and
// dispatches every order/payment write through the rule engine.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alissonpelizaro/rules-system/internal/api"
	"github.com/alissonpelizaro/rules-system/internal/cache"
	"github.com/alissonpelizaro/rules-system/internal/config"
	"github.com/alissonpelizaro/rules-system/internal/database"
	"github.com/alissonpelizaro/rules-system/internal/logger"
	"github.com/alissonpelizaro/rules-system/internal/observability"
	"github.com/alissonpelizaro/rules-system/internal/ruleengine"
	"github.com/alissonpelizaro/rules-system/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("rules-server exited with error", slog.String("error", err.Error()))
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	rules := store.NewPostgresRuleStore(pool)
	actions := store.NewPostgresRuleActionStore(pool)

	records := make([]store.RecordRepository, 0, len(store.Entities()))
	for _, entity := range store.Entities() {
		records = append(records, store.NewPostgresRecordStore(pool, entity))
	}

	var predicates ruleengine.PredicateStore
	checkers := []observability.Checker{database.NewHealthChecker(pool)}

	switch cfg.Cache.Backend {
	case config.CacheBackendMemory:
		log.Warn("using in-memory predicate cache, rule changes from other processes will not be visible")
		memStore, err := cache.NewMemoryPredicateStore(cfg.Cache.MemoryCapacity, cfg.Cache.MemoryTTL)
		if err != nil {
			return err
		}
		defer memStore.Close()
		predicates = memStore
	default:
		redisClient, err := cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		predicates = cache.NewRedisPredicateStore(redisClient, log)
		checkers = append(checkers, cache.NewHealthChecker(redisClient))
	}

	executor := ruleengine.NewExecutor(log, rules, actions, ruleengine.ExecutorConfig{
		WebhookTimeout:      cfg.Engine.WebhookTimeout,
		FulfillmentTimeout:  cfg.Engine.FulfillmentTimeout,
		Shell:               cfg.Engine.FulfillmentShell,
		FulfillmentDisabled: cfg.Engine.FulfillmentDisabled,
	})
	engine := ruleengine.NewEngine(log, predicates, executor)

	a := api.NewAPI(log, rules, actions, records, predicates, engine)

	obsServer := observability.NewServer(log, &cfg.Observability, checkers...)
	obsServer.Start()

	server := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           a.Router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting rules server",
			slog.String("addr", server.Addr),
			slog.Bool("tls", cfg.Server.TLSEnabled),
		)
		var err error
		if cfg.Server.TLSEnabled {
			err = server.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("api server shutdown failed", slog.String("error", err.Error()))
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("observability server shutdown failed", slog.String("error", err.Error()))
	}

	log.Info("rules server stopped")
	return nil
}
