// Package validation holds small contract-enforcement helpers shared by
// constructors and the configuration layer.
package validation

import "fmt"

// AssertNotNil panics when a mandatory dependency is nil. Reserved for
// wiring-time programmer errors; runtime failures must return errors
// instead.
//
// Usage:
//
//	validation.AssertNotNil(pool, "database pool")
func AssertNotNil[T any](ptr *T, name string) {
	if ptr != nil {
		return
	}
	panic(fmt.Sprintf("critical error: %s cannot be nil", name))
}
