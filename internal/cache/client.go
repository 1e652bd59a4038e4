package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alissonpelizaro/rules-system/internal/config"
	"github.com/alissonpelizaro/rules-system/internal/logger"
)

// NewRedisClient builds a Redis client from config and verifies
// connectivity before returning it, retrying the initial ping with
// exponential backoff so a service starting alongside Redis does not
// crash-loop.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	opts := &redis.Options{
		Addr:            cfg.Address(),
		Password:        cfg.Password,
		DB:              cfg.DB,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		PoolTimeout:     cfg.PoolTimeout,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryBackoff,
		MaxRetryBackoff: cfg.MaxRetryBackoff,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)
	log := logger.FromContext(ctx)

	backoff := cfg.PingBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.PingMaxRetries; attempt++ {
		// Each attempt gets its own backoff step as its deadline, so a
		// hung ping cannot consume the budget of the remaining retries.
		pingCtx, cancel := context.WithTimeout(ctx, backoff)
		lastErr = client.Ping(pingCtx).Err()
		cancel()

		if lastErr == nil {
			log.Info("redis connection established", slog.Int("attempt", attempt))
			return client, nil
		}

		log.Warn("redis ping failed",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", cfg.PingMaxRetries),
			slog.Any("error", lastErr),
		)
		if attempt < cfg.PingMaxRetries {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	return nil, fmt.Errorf("failed to connect to redis after %d retries: %w", cfg.PingMaxRetries, lastErr)
}
