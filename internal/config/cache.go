package config

import (
	"fmt"
	"time"
)

// Predicate cache backends. Redis is the production backend shared with
// the syncer; memory is a single-process backend for local development.
const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

// CacheConfig selects and sizes the predicate cache backend.
type CacheConfig struct {
	// Backend picks the predicate cache implementation.
	Backend string `envconfig:"BACKEND" default:"redis" validate:"oneof=redis memory"`

	// MemoryCapacity bounds the in-memory backend's entry count.
	MemoryCapacity int `envconfig:"MEMORY_CAPACITY" default:"10000" validate:"gt=0"`

	// MemoryTTL expires in-memory entries as a safety net against a
	// missed delete. The syncer republishes live predicates each cycle,
	// so the TTL only needs to outlast one sync interval.
	MemoryTTL time.Duration `envconfig:"MEMORY_TTL" default:"5m"`
}

// Validate performs validation on the CacheConfig.
func (c *CacheConfig) Validate(environment string) error {
	if environment == EnvironmentProduction && c.Backend == CacheBackendMemory {
		return fmt.Errorf("memory cache backend is not allowed in production")
	}
	if c.Backend == CacheBackendMemory && c.MemoryTTL <= 0 {
		return fmt.Errorf("cache memory TTL must be positive")
	}
	return nil
}
