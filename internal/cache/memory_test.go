package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alissonpelizaro/rules-system/internal/ruleengine"
)

func newTestMemoryStore(t *testing.T) *MemoryPredicateStore {
	t.Helper()

	store, err := NewMemoryPredicateStore(100, time.Minute)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func TestMemoryPredicateStore_PutAndList(t *testing.T) {
	t.Parallel()

	store := newTestMemoryStore(t)
	ctx := context.Background()

	pred := ruleengine.Compile("order", []ruleengine.FilterClause{
		{Key: "status", Operation: ruleengine.OpIs, Value: "paid"},
	})

	require.NoError(t, store.Put(ctx, "order", "rule-1", pred))

	got, err := store.ListForEntity(ctx, "order")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, pred, got["rule-1"])
}

func TestMemoryPredicateStore_ListIsScopedToEntity(t *testing.T) {
	t.Parallel()

	store := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "order", "rule-o", ruleengine.Compile("order", nil)))
	require.NoError(t, store.Put(ctx, "payment", "rule-p", ruleengine.Compile("payment", nil)))

	orders, err := store.ListForEntity(ctx, "order")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Contains(t, orders, "rule-o")

	payments, err := store.ListForEntity(ctx, "payment")
	require.NoError(t, err)
	assert.Len(t, payments, 1)
	assert.Contains(t, payments, "rule-p")
}

func TestMemoryPredicateStore_Delete(t *testing.T) {
	t.Parallel()

	store := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "order", "rule-1", ruleengine.Compile("order", nil)))
	require.NoError(t, store.Delete(ctx, "order", "rule-1"))

	got, err := store.ListForEntity(ctx, "order")
	require.NoError(t, err)
	assert.Empty(t, got)

	// Deleting a missing entry is a no-op, not an error.
	assert.NoError(t, store.Delete(ctx, "order", "rule-1"))
}

func TestMemoryPredicateStore_PutOverwrites(t *testing.T) {
	t.Parallel()

	store := newTestMemoryStore(t)
	ctx := context.Background()

	first := ruleengine.Compile("order", []ruleengine.FilterClause{{Key: "a", Operation: ruleengine.OpIsEmpty}})
	second := ruleengine.Compile("order", []ruleengine.FilterClause{{Key: "b", Operation: ruleengine.OpIsNotEmpty}})

	require.NoError(t, store.Put(ctx, "order", "rule-1", first))
	require.NoError(t, store.Put(ctx, "order", "rule-1", second))

	got, err := store.ListForEntity(ctx, "order")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, second, got["rule-1"])
}

func TestMemoryPredicateStore_ListUnknownEntity(t *testing.T) {
	t.Parallel()

	store := newTestMemoryStore(t)

	got, err := store.ListForEntity(context.Background(), "shipment")
	require.NoError(t, err)
	assert.Empty(t, got)
}
