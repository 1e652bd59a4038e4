package config

import "time"

// SyncerConfig contains configuration for the cache reconciliation worker.
type SyncerConfig struct {
	Enabled bool `envconfig:"ENABLED" default:"true"`

	// Interval is the duration between reconciliation cycles.
	Interval time.Duration `envconfig:"INTERVAL" default:"60s" validate:"gte=1s"`

	// CycleTimeout bounds one full reconciliation cycle.
	CycleTimeout time.Duration `envconfig:"CYCLE_TIMEOUT" default:"30s" validate:"gt=0"`
}
