package observability

import "context"

// Checker is implemented by every backend the readiness probe reports
// on. Implementations must be safe for concurrent use and must honor
// the context deadline.
type Checker interface {
	// Name identifies the backend in probe output ("postgres", "redis").
	Name() string

	// Check returns nil when the backend is reachable.
	Check(ctx context.Context) error
}
