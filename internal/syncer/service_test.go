package syncer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alissonpelizaro/rules-system/internal/config"
	"github.com/alissonpelizaro/rules-system/internal/ruleengine"
	"github.com/alissonpelizaro/rules-system/internal/store"
)

// fakeRuleRepo serves a fixed rule list.
type fakeRuleRepo struct {
	rules []*store.Rule
	err   error
}

func (f *fakeRuleRepo) CreateRule(context.Context, *store.Rule) error          { return nil }
func (f *fakeRuleRepo) GetRule(context.Context, string) (*store.Rule, error)   { return nil, store.ErrNotFound }
func (f *fakeRuleRepo) UpdateRule(context.Context, *store.Rule) error          { return nil }
func (f *fakeRuleRepo) DeleteRule(context.Context, string) error               { return nil }
func (f *fakeRuleRepo) GetRuleActionIDs(context.Context, string) ([]string, error) { return nil, nil }

func (f *fakeRuleRepo) ListAllRules(context.Context) ([]*store.Rule, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rules, nil
}

// fakePredicateCache is an in-memory PredicateCache.
type fakePredicateCache struct {
	entries map[string]*ruleengine.Predicate
	putErr  error
}

func newFakePredicateCache() *fakePredicateCache {
	return &fakePredicateCache{entries: make(map[string]*ruleengine.Predicate)}
}

func cacheKey(entity, ruleID string) string { return "rule_filter#" + entity + "#" + ruleID }

func (f *fakePredicateCache) Put(_ context.Context, entity, ruleID string, p *ruleengine.Predicate) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.entries[cacheKey(entity, ruleID)] = p
	return nil
}

func (f *fakePredicateCache) Delete(_ context.Context, entity, ruleID string) error {
	delete(f.entries, cacheKey(entity, ruleID))
	return nil
}

func (f *fakePredicateCache) ListForEntity(_ context.Context, entity string) (map[string]*ruleengine.Predicate, error) {
	out := make(map[string]*ruleengine.Predicate)
	for k, p := range f.entries {
		if p != nil && p.Entity == entity {
			out[k] = p
		}
	}
	return out, nil
}

func (f *fakePredicateCache) ListAll(context.Context) (map[string]string, error) {
	out := make(map[string]string, len(f.entries))
	for k := range f.entries {
		// rule id is the key's last segment
		id := k[len("rule_filter#"):]
		for i := 0; i < len(id); i++ {
			if id[i] == '#' {
				id = id[i+1:]
				break
			}
		}
		out[k] = id
	}
	return out, nil
}

func (f *fakePredicateCache) DeleteKey(_ context.Context, key string) error {
	delete(f.entries, key)
	return nil
}

func newTestService(rules *fakeRuleRepo, cache *fakePredicateCache) *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(log, config.SyncerConfig{Interval: time.Minute, CycleTimeout: 5 * time.Second}, rules, cache)
}

func TestNew_NilDependencies(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { New(nil, config.SyncerConfig{}, nil, newFakePredicateCache()) })
	assert.Panics(t, func() { New(nil, config.SyncerConfig{}, &fakeRuleRepo{}, nil) })
}

func TestNew_DefaultsUnsafeIntervals(t *testing.T) {
	t.Parallel()

	svc := New(nil, config.SyncerConfig{Interval: 10 * time.Millisecond}, &fakeRuleRepo{}, newFakePredicateCache())

	assert.Equal(t, 60*time.Second, svc.cfg.Interval, "sub-second intervals should fall back to the default")
	assert.Equal(t, 30*time.Second, svc.cfg.CycleTimeout)
}

func TestService_Sync_PublishesEnabledRules(t *testing.T) {
	t.Parallel()

	rules := &fakeRuleRepo{rules: []*store.Rule{
		{ID: "r1", Entity: "order", Enabled: true, Filters: []ruleengine.FilterClause{
			{Key: "status", Operation: ruleengine.OpIs, Value: "paid"},
		}},
		{ID: "r2", Entity: "payment", Enabled: true},
	}}
	cache := newFakePredicateCache()
	svc := newTestService(rules, cache)

	// Act
	require.NoError(t, svc.sync(context.Background()))

	// Assert
	require.Len(t, cache.entries, 2)
	pred := cache.entries[cacheKey("order", "r1")]
	require.NotNil(t, pred)
	assert.Equal(t, "order", pred.Entity)
	assert.Len(t, pred.Clauses, 1)
}

func TestService_Sync_RemovesDisabledRules(t *testing.T) {
	t.Parallel()

	cache := newFakePredicateCache()
	ctx := context.Background()
	require.NoError(t, cache.Put(ctx, "order", "r1", ruleengine.Compile("order", nil)))

	rules := &fakeRuleRepo{rules: []*store.Rule{
		{ID: "r1", Entity: "order", Enabled: false},
	}}
	svc := newTestService(rules, cache)

	require.NoError(t, svc.sync(ctx))

	assert.Empty(t, cache.entries, "the disabled rule's predicate should be evicted")
}

func TestService_Sync_RemovesOrphans(t *testing.T) {
	t.Parallel()

	// Arrange: a cache entry whose rule row no longer exists.
	cache := newFakePredicateCache()
	ctx := context.Background()
	require.NoError(t, cache.Put(ctx, "order", "ghost", ruleengine.Compile("order", nil)))

	rules := &fakeRuleRepo{rules: []*store.Rule{
		{ID: "r1", Entity: "order", Enabled: true},
	}}
	svc := newTestService(rules, cache)

	// Act
	require.NoError(t, svc.sync(ctx))

	// Assert: the live rule is published, the orphan is gone.
	assert.Contains(t, cache.entries, cacheKey("order", "r1"))
	assert.NotContains(t, cache.entries, cacheKey("order", "ghost"))
}

func TestService_Sync_PerRuleFailuresDoNotAbortBatch(t *testing.T) {
	t.Parallel()

	cache := newFakePredicateCache()
	cache.putErr = errors.New("cache write refused")

	rules := &fakeRuleRepo{rules: []*store.Rule{
		{ID: "r1", Entity: "order", Enabled: true},
		{ID: "r2", Entity: "order", Enabled: false},
	}}
	svc := newTestService(rules, cache)

	// Act: the failing put must not fail the cycle.
	err := svc.sync(context.Background())

	// Assert
	assert.NoError(t, err)
}

func TestService_Sync_SourceOfTruthFailure(t *testing.T) {
	t.Parallel()

	rules := &fakeRuleRepo{err: errors.New("db down")}
	svc := newTestService(rules, newFakePredicateCache())

	err := svc.sync(context.Background())

	assert.Error(t, err, "a source-of-truth read failure fails the cycle, the next tick retries")
}

func TestService_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	rules := &fakeRuleRepo{}
	svc := New(nil, config.SyncerConfig{Interval: time.Second, CycleTimeout: time.Second}, rules, newFakePredicateCache())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("syncer did not stop after context cancellation")
	}
}
