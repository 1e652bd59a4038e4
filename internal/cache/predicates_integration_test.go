//go:build integration

package cache_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alissonpelizaro/rules-system/internal/ruleengine"
	"github.com/alissonpelizaro/rules-system/internal/testsupport"
)

// TestRedisPredicateStore_Integration runs the predicate store scenarios
// against a real Redis container. Scenarios are sequential and isolate
// themselves through distinct rule ids.
func TestRedisPredicateStore_Integration(t *testing.T) {
	ctx := context.Background()

	redisContainer, err := testsupport.StartRedisContainer(ctx)
	require.NoError(t, err, "failed to start redis container")

	defer func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}()

	predicates := redisContainer.Predicates

	paidOrders := &ruleengine.Predicate{
		Entity: "order",
		Clauses: []ruleengine.FilterClause{
			{Key: "status", Operation: ruleengine.OpIs, Value: "paid"},
		},
	}

	t.Run("PutAndListForEntity_RoundTrip", func(t *testing.T) {
		// Arrange & Act
		require.NoError(t, predicates.Put(ctx, "order", "rule-round-trip", paidOrders))

		listed, err := predicates.ListForEntity(ctx, "order")

		// Assert
		require.NoError(t, err)
		got, ok := listed["rule-round-trip"]
		require.True(t, ok, "published predicate must be listed under its rule id")
		assert.Equal(t, "order", got.Entity)
		require.Len(t, got.Clauses, 1)
		assert.Equal(t, ruleengine.OpIs, got.Clauses[0].Operation)

		// Behavioral check: the round-tripped predicate still evaluates.
		assert.True(t, got.Matches(ruleengine.Event{Entity: "order", Data: map[string]string{"status": "paid"}}))
		assert.False(t, got.Matches(ruleengine.Event{Entity: "order", Data: map[string]string{"status": "pending"}}))
	})

	t.Run("ListForEntity_ScopedToEntity", func(t *testing.T) {
		// Arrange
		cardPayments := &ruleengine.Predicate{
			Entity: "payment",
			Clauses: []ruleengine.FilterClause{
				{Key: "method", Operation: ruleengine.OpIs, Value: "card"},
			},
		}
		require.NoError(t, predicates.Put(ctx, "payment", "rule-scoped", cardPayments))

		// Act
		orderPreds, err := predicates.ListForEntity(ctx, "order")
		require.NoError(t, err)
		paymentPreds, err := predicates.ListForEntity(ctx, "payment")
		require.NoError(t, err)

		// Assert
		assert.NotContains(t, orderPreds, "rule-scoped")
		assert.Contains(t, paymentPreds, "rule-scoped")
	})

	t.Run("Put_OverwritesExistingEntry", func(t *testing.T) {
		// Arrange
		require.NoError(t, predicates.Put(ctx, "order", "rule-overwrite", paidOrders))

		refunded := &ruleengine.Predicate{
			Entity: "order",
			Clauses: []ruleengine.FilterClause{
				{Key: "status", Operation: ruleengine.OpIs, Value: "refunded"},
			},
		}

		// Act
		require.NoError(t, predicates.Put(ctx, "order", "rule-overwrite", refunded))

		// Assert
		listed, err := predicates.ListForEntity(ctx, "order")
		require.NoError(t, err)
		got := listed["rule-overwrite"]
		require.NotNil(t, got)
		assert.Equal(t, "refunded", got.Clauses[0].Value)
	})

	t.Run("Delete_RemovesEntry", func(t *testing.T) {
		// Arrange
		require.NoError(t, predicates.Put(ctx, "order", "rule-doomed", paidOrders))

		// Act
		require.NoError(t, predicates.Delete(ctx, "order", "rule-doomed"))

		// Assert
		listed, err := predicates.ListForEntity(ctx, "order")
		require.NoError(t, err)
		assert.NotContains(t, listed, "rule-doomed")

		// Deleting a missing entry is a no-op, not an error.
		assert.NoError(t, predicates.Delete(ctx, "order", "rule-doomed"))
	})

	t.Run("ListForEntity_SkipsPoisonEntries", func(t *testing.T) {
		// Arrange: plant a corrupted blob behind the store's back, next
		// to a healthy entry.
		require.NoError(t, predicates.Put(ctx, "order", "rule-healthy", paidOrders))
		require.NoError(t, redisContainer.Client.Set(ctx, "rule_filter#order#rule-poison", "{not json", 0).Err())

		// Act & Assert: the poison entry is skipped and counted, the
		// healthy one survives.
		testsupport.AssertMetricDelta(t, "rules_predicate_cache_poison_entries_total", nil, 1, func() {
			listed, err := predicates.ListForEntity(ctx, "order")
			require.NoError(t, err)
			assert.NotContains(t, listed, "rule-poison")
			assert.Contains(t, listed, "rule-healthy")
		})
	})

	t.Run("ListAll_ReturnsKeysAcrossEntities", func(t *testing.T) {
		// Arrange
		require.NoError(t, predicates.Put(ctx, "order", "rule-all-order", paidOrders))
		require.NoError(t, predicates.Put(ctx, "payment", "rule-all-payment", &ruleengine.Predicate{Entity: "payment"}))

		// Act
		entries, err := predicates.ListAll(ctx)

		// Assert: keys map back to their rule ids.
		require.NoError(t, err)
		assert.Equal(t, "rule-all-order", entries["rule_filter#order#rule-all-order"])
		assert.Equal(t, "rule-all-payment", entries["rule_filter#payment#rule-all-payment"])
	})

	t.Run("DeleteKey_RemovesRawKey", func(t *testing.T) {
		// Arrange
		require.NoError(t, predicates.Put(ctx, "order", "rule-raw-doomed", paidOrders))

		// Act
		require.NoError(t, predicates.DeleteKey(ctx, "rule_filter#order#rule-raw-doomed"))

		// Assert
		entries, err := predicates.ListAll(ctx)
		require.NoError(t, err)
		assert.NotContains(t, entries, "rule_filter#order#rule-raw-doomed")
	})
}
