// Package syncer implements the background worker that reconciles the
// predicate cache with the rules table. The cache is a derived view:
// the rule controller keeps it in sync on the write path, but its two
// external calls are not atomic, so a crash can leave a stale or
// missing predicate. The syncer heals that window on every cycle, which
// also makes the cache fully disposable (flush it and wait one cycle).
package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/alissonpelizaro/rules-system/internal/config"
	"github.com/alissonpelizaro/rules-system/internal/observability"
	"github.com/alissonpelizaro/rules-system/internal/ruleengine"
	"github.com/alissonpelizaro/rules-system/internal/store"
)

// PredicateCache is the syncer's view of the predicate cache. It extends
// the engine's contract with whole-cache enumeration so orphan entries
// (predicates whose rule was deleted) can be removed.
type PredicateCache interface {
	ruleengine.PredicateStore

	// ListAll returns every predicate cache key mapped to its rule id.
	ListAll(ctx context.Context) (map[string]string, error)

	// DeleteKey removes a raw cache key.
	DeleteKey(ctx context.Context, key string) error
}

// Service orchestrates the reconciliation process.
type Service struct {
	logger *slog.Logger
	cfg    config.SyncerConfig
	rules  store.RuleRepository
	cache  PredicateCache
}

// New creates a new syncer Service.
func New(logger *slog.Logger, cfg config.SyncerConfig, rules store.RuleRepository, predicates PredicateCache) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if rules == nil {
		panic("syncer: rule repository cannot be nil")
	}
	if predicates == nil {
		panic("syncer: predicate cache cannot be nil")
	}

	if cfg.Interval < time.Second {
		cfg.Interval = 60 * time.Second // Safe default
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = 30 * time.Second
	}

	return &Service{
		logger: logger,
		cfg:    cfg,
		rules:  rules,
		cache:  predicates,
	}
}

// Run starts the reconciliation loop. It blocks until the context is
// cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting syncer service", slog.String("interval", s.cfg.Interval.String()))

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	// Run once immediately on startup so a cold cache is usable before
	// the first tick.
	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("syncer service stopping...")
			return nil
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle executes one bounded reconciliation cycle. Errors are logged,
// never fatal: the next tick retries.
func (s *Service) runCycle(ctx context.Context) {
	cycleCtx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
	defer cancel()

	if err := s.sync(cycleCtx); err != nil {
		s.logger.Error("sync cycle failed", slog.String("error", err.Error()))
	}
}

// sync performs a single reconciliation cycle: publish predicates for
// enabled rules, drop entries for disabled rules, and remove orphans
// whose rule no longer exists. Per-rule errors are logged and skipped.
func (s *Service) sync(ctx context.Context) error {
	start := time.Now()

	// 1. Read from Source of Truth (Postgres)
	rules, err := s.rules.ListAllRules(ctx)
	if err != nil {
		return err
	}

	published := 0
	removed := 0
	errorCount := 0

	known := make(map[string]struct{}, len(rules))
	for _, rule := range rules {
		known[rule.ID] = struct{}{}

		if rule.Enabled {
			pred := ruleengine.Compile(rule.Entity, rule.Filters)
			if err := s.cache.Put(ctx, rule.Entity, rule.ID, pred); err != nil {
				s.logger.Warn("failed to publish predicate",
					slog.String("rule_id", rule.ID),
					slog.String("error", err.Error()),
				)
				observability.SyncerRulesSynced.WithLabelValues("fail").Inc()
				errorCount++
				continue // Try next rule, don't abort the batch
			}
			observability.SyncerRulesSynced.WithLabelValues("published").Inc()
			published++
			continue
		}

		if err := s.cache.Delete(ctx, rule.Entity, rule.ID); err != nil {
			s.logger.Warn("failed to remove predicate of disabled rule",
				slog.String("rule_id", rule.ID),
				slog.String("error", err.Error()),
			)
			observability.SyncerRulesSynced.WithLabelValues("fail").Inc()
			errorCount++
			continue
		}
		observability.SyncerRulesSynced.WithLabelValues("removed").Inc()
		removed++
	}

	// 2. Orphan cleanup: cache entries whose rule row is gone.
	orphans, err := s.removeOrphans(ctx, known)
	if err != nil {
		s.logger.Warn("orphan cleanup skipped", slog.String("error", err.Error()))
	}

	observability.SyncerCycleDuration.Observe(time.Since(start).Seconds())

	if published > 0 || removed > 0 || orphans > 0 || errorCount > 0 {
		s.logger.Info("sync cycle completed",
			slog.Int("published", published),
			slog.Int("removed", removed),
			slog.Int("orphans_removed", orphans),
			slog.Int("errors", errorCount),
			slog.String("duration", time.Since(start).String()),
		)
	}
	return nil
}

// removeOrphans deletes cache keys whose rule id is not in the known
// set. Returns the number of keys removed.
func (s *Service) removeOrphans(ctx context.Context, known map[string]struct{}) (int, error) {
	entries, err := s.cache.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for key, ruleID := range entries {
		if _, ok := known[ruleID]; ok {
			continue
		}
		if err := s.cache.DeleteKey(ctx, key); err != nil {
			s.logger.Warn("failed to remove orphan predicate",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			continue
		}
		observability.SyncerRulesSynced.WithLabelValues("removed").Inc()
		removed++
	}
	return removed, nil
}
