package ruleengine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Predicate is the compiled, cacheable form of one rule's (entity,
// filters) pair. It is a plain data structure interpreted at evaluation
// time; nothing executable ever crosses the cache boundary. A decoded
// predicate evaluates identically to the one that was encoded, with no
// access to the original specification or validation context.
type Predicate struct {
	Entity  string         `json:"entity"`
	Clauses []FilterClause `json:"clauses,omitempty"`
}

// Compile derives the predicate for a rule's entity and validated
// filters. Filters must already have passed Normalize; compilation is a
// one-shot transformation, not a per-event interpretation step.
func Compile(entity string, filters []FilterClause) *Predicate {
	return &Predicate{Entity: entity, Clauses: filters}
}

// Encode serializes the predicate into the opaque blob stored in the
// predicate cache. The blob is internal and non-versioned; predicates
// are recomputed rather than migrated across upgrades.
func (p *Predicate) Encode() ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode predicate: %w", err)
	}
	return b, nil
}

// DecodePredicate reconstructs a predicate from a cache blob.
func DecodePredicate(b []byte) (*Predicate, error) {
	var p Predicate
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("failed to decode predicate: %w", err)
	}
	return &p, nil
}

// Matches reports whether the event satisfies the predicate: the entity
// must match and every clause must hold, in order. An entity mismatch
// short-circuits regardless of field values; an empty clause list
// matches any event of the predicate's entity.
func (p *Predicate) Matches(ev Event) bool {
	if ev.Entity != p.Entity {
		return false
	}
	for _, clause := range p.Clauses {
		if !clauseHolds(clause, ev) {
			return false
		}
	}
	return true
}

// clauseHolds evaluates one clause against the event data.
//
// Presence handling is deliberately uneven to preserve the reference
// behavior: "is" requires the key to be present, "is_not" holds for an
// absent key, "is_empty" treats absent and empty alike, and
// "is_not_empty" checks only against the empty string, so an absent key
// holds. The four substring operations treat an absent key as the empty
// string.
func clauseHolds(c FilterClause, ev Event) bool {
	value, present := ev.Data[c.Key]

	switch c.Operation {
	case OpIs:
		return present && value == c.Value
	case OpIsNot:
		return !present || value != c.Value
	case OpIsEmpty:
		return !present || value == ""
	case OpIsNotEmpty:
		return !present || value != ""
	case OpContains:
		return strings.Contains(value, c.Value)
	case OpDoesNotContain:
		return !strings.Contains(value, c.Value)
	case OpStartsWith:
		return strings.HasPrefix(value, c.Value)
	case OpEndsWith:
		return strings.HasSuffix(value, c.Value)
	default:
		// Unknown operations cannot appear in a normalized clause; an
		// out-of-band blob fails closed.
		return false
	}
}
