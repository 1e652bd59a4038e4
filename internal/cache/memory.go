package cache

import (
	"context"
	"strings"
	"time"

	"github.com/maypok86/otter"

	"github.com/alissonpelizaro/rules-system/internal/ruleengine"
)

// MemoryPredicateStore implements ruleengine.PredicateStore in-process
// using the contention-free S3-FIFO cache from the 'otter' library. It
// backs single-node development setups and unit tests where an external
// Redis is overkill. Semantics mirror the Redis store, including the
// prefix-scan ListForEntity.
type MemoryPredicateStore struct {
	store otter.Cache[string, *ruleengine.Predicate]
}

var _ ruleengine.PredicateStore = (*MemoryPredicateStore)(nil)

// NewMemoryPredicateStore initializes the in-memory store.
// capacity caps the number of entries (hard cap to prevent OOM);
// ttl is a safety net against entries orphaned by a missed delete.
func NewMemoryPredicateStore(capacity int, ttl time.Duration) (*MemoryPredicateStore, error) {
	builder := otter.MustBuilder[string, *ruleengine.Predicate](capacity).
		WithTTL(ttl)

	store, err := builder.Build()
	if err != nil {
		return nil, err
	}
	return &MemoryPredicateStore{store: store}, nil
}

// Put stores the predicate under the same key layout the Redis store uses.
func (s *MemoryPredicateStore) Put(_ context.Context, entity, ruleID string, p *ruleengine.Predicate) error {
	s.store.Set(predicateKey(entity, ruleID), p)
	return nil
}

// Delete removes a rule's predicate. Missing entries are not an error.
func (s *MemoryPredicateStore) Delete(_ context.Context, entity, ruleID string) error {
	s.store.Delete(predicateKey(entity, ruleID))
	return nil
}

// ListForEntity walks the cache and collects entries under the entity's
// key prefix. Otter's Range is lock-free, so concurrent reads stay cheap.
func (s *MemoryPredicateStore) ListForEntity(_ context.Context, entity string) (map[string]*ruleengine.Predicate, error) {
	prefix := predicateKey(entity, "")
	result := make(map[string]*ruleengine.Predicate)

	s.store.Range(func(key string, value *ruleengine.Predicate) bool {
		if strings.HasPrefix(key, prefix) {
			if ruleID, ok := ruleIDFromKey(key); ok {
				result[ruleID] = value
			}
		}
		return true
	})
	return result, nil
}

// Close shuts down the cache and its background cleanup goroutines.
func (s *MemoryPredicateStore) Close() {
	s.store.Close()
}
