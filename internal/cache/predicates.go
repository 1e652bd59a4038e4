// Package cache provides the predicate cache layer for the rules
// system. It abstracts the external low-latency key-value store that
// holds compiled predicates, handling key namespacing, serialization,
// and connection management. The cache is a derived view of the rules
// table and is always safe to flush and rebuild.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/alissonpelizaro/rules-system/internal/observability"
	"github.com/alissonpelizaro/rules-system/internal/ruleengine"
	"github.com/alissonpelizaro/rules-system/internal/validation"
)

// keyPrefix namespaces every predicate key in Redis.
// Key layout: rule_filter#<entity>#<ruleID>. Embedding both entity and
// rule id lets ListForEntity run as a prefix scan with no secondary
// index, and lets the rule id be recovered from the key alone.
const keyPrefix = "rule_filter"

// scanBatchSize is the COUNT hint for one SCAN iteration.
const scanBatchSize = 256

// predicateKey composes the cache key for a rule's predicate.
func predicateKey(entity, ruleID string) string {
	return fmt.Sprintf("%s#%s#%s", keyPrefix, entity, ruleID)
}

// ruleIDFromKey recovers the rule id from a predicate key. The rule id
// is everything after the second separator, so ids containing '#' are
// preserved intact.
func ruleIDFromKey(key string) (string, bool) {
	parts := strings.SplitN(key, "#", 3)
	if len(parts) != 3 {
		return "", false
	}
	return parts[2], true
}

// RedisPredicateStore implements ruleengine.PredicateStore on top of a
// Redis client. All operations are safe for concurrent use.
type RedisPredicateStore struct {
	client *redis.Client
	logger *slog.Logger
}

// Compile-time check that the store satisfies the engine's contract.
var _ ruleengine.PredicateStore = (*RedisPredicateStore)(nil)

// NewRedisPredicateStore wraps an initialized Redis client. If logger is
// nil, it defaults to slog.Default().
func NewRedisPredicateStore(client *redis.Client, logger *slog.Logger) *RedisPredicateStore {
	validation.AssertNotNil(client, "redis client")
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPredicateStore{client: client, logger: logger}
}

// Put publishes the encoded predicate for a rule. Entries have no TTL:
// lifecycle is owned by the rule controller and the syncer.
func (s *RedisPredicateStore) Put(ctx context.Context, entity, ruleID string, p *ruleengine.Predicate) error {
	blob, err := p.Encode()
	if err != nil {
		observability.PredicateCacheOps.WithLabelValues("put", "failure").Inc()
		return err
	}

	if err := s.client.Set(ctx, predicateKey(entity, ruleID), blob, 0).Err(); err != nil {
		observability.PredicateCacheOps.WithLabelValues("put", "failure").Inc()
		return fmt.Errorf("failed to cache predicate for rule %q: %w", ruleID, err)
	}

	observability.PredicateCacheOps.WithLabelValues("put", "success").Inc()
	return nil
}

// Delete removes a rule's predicate. Deleting a missing entry succeeds.
func (s *RedisPredicateStore) Delete(ctx context.Context, entity, ruleID string) error {
	if err := s.client.Del(ctx, predicateKey(entity, ruleID)).Err(); err != nil {
		observability.PredicateCacheOps.WithLabelValues("delete", "failure").Inc()
		return fmt.Errorf("failed to delete predicate for rule %q: %w", ruleID, err)
	}
	observability.PredicateCacheOps.WithLabelValues("delete", "success").Inc()
	return nil
}

// ListForEntity returns every cached predicate for an entity, keyed by
// rule id. It scans the entity's key prefix cursor-wise (SCAN, never
// KEYS, to avoid blocking the server) and bulk-fetches the blobs with
// MGET. Entries that fail to decode are logged and skipped: a poison
// entry quarantines itself without taking down event processing.
func (s *RedisPredicateStore) ListForEntity(ctx context.Context, entity string) (map[string]*ruleengine.Predicate, error) {
	pattern := fmt.Sprintf("%s#%s#*", keyPrefix, entity)

	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		observability.PredicateCacheOps.WithLabelValues("list", "failure").Inc()
		return nil, fmt.Errorf("failed to scan predicates for entity %q: %w", entity, err)
	}

	result := make(map[string]*ruleengine.Predicate, len(keys))
	if len(keys) == 0 {
		observability.PredicateCacheOps.WithLabelValues("list", "success").Inc()
		return result, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		observability.PredicateCacheOps.WithLabelValues("list", "failure").Inc()
		return nil, fmt.Errorf("failed to fetch predicates for entity %q: %w", entity, err)
	}

	for i, raw := range values {
		ruleID, ok := ruleIDFromKey(keys[i])
		if !ok {
			continue
		}

		// MGET returns nil for keys deleted between SCAN and MGET.
		blob, ok := raw.(string)
		if !ok {
			continue
		}

		pred, err := ruleengine.DecodePredicate([]byte(blob))
		if err != nil {
			s.logger.Warn("skipping undecodable cached predicate",
				slog.String("key", keys[i]),
				slog.String("error", err.Error()),
			)
			observability.PredicateCachePoisonEntries.Inc()
			continue
		}
		result[ruleID] = pred
	}

	observability.PredicateCacheOps.WithLabelValues("list", "success").Inc()
	return result, nil
}

// ListAll returns every cached predicate across all entities, keyed by
// cache key. The syncer uses it to find orphan entries whose rule no
// longer exists.
func (s *RedisPredicateStore) ListAll(ctx context.Context) (map[string]string, error) {
	pattern := keyPrefix + "#*"

	entries := make(map[string]string)
	iter := s.client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if ruleID, ok := ruleIDFromKey(key); ok {
			entries[key] = ruleID
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan predicate keys: %w", err)
	}
	return entries, nil
}

// DeleteKey removes a raw cache key. Used by the syncer for orphan
// cleanup where only the key is known.
func (s *RedisPredicateStore) DeleteKey(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Close terminates the underlying connection.
func (s *RedisPredicateStore) Close() error {
	return s.client.Close()
}
