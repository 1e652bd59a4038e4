package ruleengine

import (
	"context"
	"log/slog"
	"time"

	"github.com/alissonpelizaro/rules-system/internal/observability"
)

// PredicateStore is the engine's view of the external predicate cache.
// The cache is a derived, disposable projection of the rules table: it
// answers "which rules are currently eligible for fast-path evaluation",
// never "does this rule exist".
type PredicateStore interface {
	// Put publishes the compiled predicate for a rule.
	Put(ctx context.Context, entity, ruleID string, p *Predicate) error

	// Delete removes a rule's predicate. Deleting a missing entry is not
	// an error.
	Delete(ctx context.Context, entity, ruleID string) error

	// ListForEntity returns all cached predicates for an entity, keyed by
	// rule id. Iteration order of the result is not stable across
	// backends; callers must treat it as a set.
	ListForEntity(ctx context.Context, entity string) (map[string]*Predicate, error)
}

// ActionRunner executes the actions of one matched rule. It never
// returns an error: action failures are isolated and logged inside the
// runner, and only the ids of actions that completed are reported.
type ActionRunner interface {
	ExecuteForRule(ctx context.Context, ruleID string, ev Event) []string
}

// Engine is the event dispatcher. Given an event it loads every cached
// predicate for the event's entity, evaluates them, and hands each match
// to the action runner.
type Engine struct {
	logger     *slog.Logger
	predicates PredicateStore
	runner     ActionRunner
}

// NewEngine creates an Engine. If logger is nil, it defaults to
// slog.Default().
func NewEngine(logger *slog.Logger, predicates PredicateStore, runner ActionRunner) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if predicates == nil {
		panic("ruleengine: predicate store cannot be nil")
	}
	if runner == nil {
		panic("ruleengine: action runner cannot be nil")
	}

	return &Engine{
		logger:     logger,
		predicates: predicates,
		runner:     runner,
	}
}

// ProcessEvent evaluates the event against every cached predicate of its
// entity and executes the actions of each matching rule. It returns the
// ids of triggered rules in cache-iteration order (non-deterministic;
// callers treat the result as a set).
//
// ProcessEvent never fails the caller's write path: an unavailable cache
// degrades to "no rules match", and action failures are swallowed by the
// runner. An empty result is normal, not an error.
func (e *Engine) ProcessEvent(ctx context.Context, ev Event) []string {
	start := time.Now()

	preds, err := e.predicates.ListForEntity(ctx, ev.Entity)
	if err != nil {
		// Fail Open: event matching is not safety-critical and cache
		// entries are cheap to regenerate.
		e.logger.Error("predicate cache unavailable, skipping rule matching",
			slog.String("entity", ev.Entity),
			slog.String("error", err.Error()),
		)
		observability.EngineCacheFailures.Inc()
		return nil
	}

	triggered := make([]string, 0, len(preds))
	for ruleID, pred := range preds {
		if pred == nil || !pred.Matches(ev) {
			continue
		}

		executed := e.runner.ExecuteForRule(ctx, ruleID, ev)
		e.logger.Info("rule triggered",
			slog.String("rule_id", ruleID),
			slog.String("entity", ev.Entity),
			slog.Int("actions_executed", len(executed)),
		)
		triggered = append(triggered, ruleID)
	}

	observability.EngineEventsProcessed.WithLabelValues(ev.Entity).Inc()
	observability.EngineRulesTriggered.WithLabelValues(ev.Entity).Add(float64(len(triggered)))
	observability.EngineDispatchDuration.WithLabelValues(ev.Entity).Observe(time.Since(start).Seconds())

	return triggered
}
