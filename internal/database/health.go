package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthChecker reports PostgreSQL reachability to the readiness probe.
type HealthChecker struct {
	pool *pgxpool.Pool
}

// NewHealthChecker wraps the given connection pool.
func NewHealthChecker(pool *pgxpool.Pool) *HealthChecker {
	return &HealthChecker{pool: pool}
}

// Name identifies this backend in probe output.
func (h *HealthChecker) Name() string {
	return "postgres"
}

// Check pings the pool within the caller's deadline.
func (h *HealthChecker) Check(ctx context.Context) error {
	if h.pool == nil {
		return errors.New("database pool is not initialized")
	}
	return h.pool.Ping(ctx)
}
