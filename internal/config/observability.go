package config

import "time"

// ObservabilityConfig configures the sidecar HTTP server that exposes
// the health probes and the Prometheus endpoint.
type ObservabilityConfig struct {
	// Port the observability server listens on, separate from the API
	// port so probes keep answering while the API drains.
	Port string `envconfig:"PORT" default:"9090"`

	// Timeout bounds read/write/idle on the probe server and the
	// readiness checks themselves.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s" validate:"min=1s"`

	LivenessPath  string `envconfig:"LIVENESS_PATH"  default:"/healthz"`
	ReadinessPath string `envconfig:"READINESS_PATH" default:"/readyz"`
	MetricsPath   string `envconfig:"METRICS_PATH"   default:"/metrics"`
}

// Validate checks ObservabilityConfig fields for correctness.
func (o *ObservabilityConfig) Validate() error {
	return validatePort(o.Port, "observability")
}
