package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// HealthChecker reports predicate cache reachability to the readiness
// probe. A failing cache does not stop event processing (the engine
// fails open), but it does mean rules are not firing, so the pod should
// be taken out of rotation.
type HealthChecker struct {
	client *redis.Client
}

// NewHealthChecker wraps the given Redis client.
func NewHealthChecker(client *redis.Client) *HealthChecker {
	return &HealthChecker{client: client}
}

// Name identifies this backend in probe output.
func (h *HealthChecker) Name() string {
	return "redis"
}

// Check pings the server within the caller's deadline.
func (h *HealthChecker) Check(ctx context.Context) error {
	if h.client == nil {
		return errors.New("redis client is not initialized")
	}
	return h.client.Ping(ctx).Err()
}
