//go:build integration

package syncer_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alissonpelizaro/rules-system/internal/config"
	"github.com/alissonpelizaro/rules-system/internal/ruleengine"
	"github.com/alissonpelizaro/rules-system/internal/store"
	"github.com/alissonpelizaro/rules-system/internal/syncer"
	"github.com/alissonpelizaro/rules-system/internal/testsupport"
)

// TestSyncer_Integration reconciles a real Redis cache against a real
// PostgreSQL rules table and verifies the three reconciliation outcomes:
// enabled rules are published, disabled rules are evicted, and orphan
// cache entries are removed.
func TestSyncer_Integration(t *testing.T) {
	ctx := context.Background()

	migrationsPath := "../../migrations"

	pgContainer, err := testsupport.StartPostgresContainer(ctx, migrationsPath)
	require.NoError(t, err, "failed to start postgres container")
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	}()

	redisContainer, err := testsupport.StartRedisContainer(ctx)
	require.NoError(t, err, "failed to start redis container")
	defer func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	}()

	rules := store.NewPostgresRuleStore(pgContainer.DB)
	predicates := redisContainer.Predicates

	// Arrange: one enabled rule, one disabled rule whose predicate is
	// already (stale) in the cache, and one orphan entry with no rule row.
	enabled := &store.Rule{
		ID:      uuid.NewString(),
		Name:    "paid orders",
		Entity:  "order",
		Enabled: true,
		Filters: []ruleengine.FilterClause{
			{Key: "status", Operation: ruleengine.OpIs, Value: "paid"},
		},
		Actions: []string{},
	}
	require.NoError(t, rules.CreateRule(ctx, enabled))

	disabled := &store.Rule{
		ID:      uuid.NewString(),
		Name:    "dormant",
		Entity:  "payment",
		Enabled: false,
		Filters: []ruleengine.FilterClause{},
		Actions: []string{},
	}
	require.NoError(t, rules.CreateRule(ctx, disabled))
	require.NoError(t, predicates.Put(ctx, "payment", disabled.ID, &ruleengine.Predicate{Entity: "payment"}))

	orphanID := uuid.NewString()
	require.NoError(t, predicates.Put(ctx, "order", orphanID, &ruleengine.Predicate{Entity: "order"}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := syncer.New(logger, config.SyncerConfig{
		Enabled:      true,
		Interval:     time.Second,
		CycleTimeout: 10 * time.Second,
	}, rules, predicates)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- svc.Run(runCtx)
	}()

	// Assert: the startup cycle converges the cache.
	require.Eventually(t, func() bool {
		orderPreds, err := predicates.ListForEntity(ctx, "order")
		if err != nil {
			return false
		}
		paymentPreds, err := predicates.ListForEntity(ctx, "payment")
		if err != nil {
			return false
		}
		_, hasEnabled := orderPreds[enabled.ID]
		_, hasDisabled := paymentPreds[disabled.ID]
		_, hasOrphan := orderPreds[orphanID]
		return hasEnabled && !hasDisabled && !hasOrphan
	}, 10*time.Second, 100*time.Millisecond, "first cycle must publish enabled, evict disabled, remove orphan")

	// The published predicate must be behaviorally intact.
	orderPreds, err := predicates.ListForEntity(ctx, "order")
	require.NoError(t, err)
	pred := orderPreds[enabled.ID]
	require.NotNil(t, pred)
	assert.True(t, pred.Matches(ruleengine.Event{Entity: "order", Data: map[string]string{"status": "paid"}}))

	// Act: flip the rule off and wait for a later tick to evict it.
	enabled.Enabled = false
	require.NoError(t, rules.UpdateRule(ctx, enabled))

	require.Eventually(t, func() bool {
		orderPreds, err := predicates.ListForEntity(ctx, "order")
		if err != nil {
			return false
		}
		_, present := orderPreds[enabled.ID]
		return !present
	}, 10*time.Second, 100*time.Millisecond, "disabling a rule must evict its predicate on the next cycle")

	// Reconciliation cycles must be observable.
	testsupport.AssertHistogramRecorded(t, "rules_syncer_cycle_duration_seconds", nil)

	// Shutdown: Run must return cleanly on context cancellation.
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("syncer did not stop after context cancellation")
	}
}
