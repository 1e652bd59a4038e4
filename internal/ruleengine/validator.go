package ruleengine

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Normalize type-checks a raw filter specification against the operation
// table and returns the clauses stripped to their recognized fields,
// preserving input order. A missing, empty, or null specification
// normalizes to an empty slice, which semantically matches every event
// of the rule's entity. Normalize is idempotent: feeding its output back
// in yields the same clauses.
func Normalize(raw json.RawMessage) ([]FilterClause, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []FilterClause{}, nil
	}

	var items []map[string]any
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, ErrInvalidFilterSpec
	}

	clauses := make([]FilterClause, 0, len(items))
	for _, item := range items {
		clause, err := normalizeClause(item)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	return clauses, nil
}

// normalizeClause validates one raw filter element. Fields outside the
// recognized set are dropped; the engine never persists anything beyond
// {key, operation, value}.
func normalizeClause(item map[string]any) (FilterClause, error) {
	rawKey, ok := item["key"]
	if !ok || rawKey == nil {
		return FilterClause{}, ErrMissingFilterKey
	}
	key, ok := rawKey.(string)
	if !ok {
		return FilterClause{}, ErrMissingFilterKey
	}

	rawOp, _ := item["operation"].(string)
	op := Operation(rawOp)
	required, ok := operationFields[op]
	if !ok {
		return FilterClause{}, &UnknownOperationError{Operation: rawOp, Allowed: Operations()}
	}

	clause := FilterClause{Key: key, Operation: op}
	for _, field := range required {
		v, ok := item[field]
		if !ok {
			return FilterClause{}, &MissingOperationFieldError{Operation: op, Field: field}
		}
		// The operation table only ever demands "value" today; keep the
		// lookup table-driven so new operations stay declarative.
		if field == "value" {
			clause.Value = stringify(v)
		}
	}
	return clause, nil
}

// stringify coerces a decoded JSON scalar to its string form. Clause
// values are compared as strings at evaluation time.
func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
