// Package ruleengine implements the rule matching core. It validates
// user-supplied filter specifications against a fixed operation table,
// compiles them into cacheable predicates, evaluates incoming events
// against the cached predicates of their entity, and fans out to the
// actions of every matching rule with per-action failure isolation.
package ruleengine

// Operation identifies one of the recognized filter comparisons.
type Operation string

const (
	OpIs             Operation = "is"
	OpIsNot          Operation = "is_not"
	OpIsEmpty        Operation = "is_empty"
	OpIsNotEmpty     Operation = "is_not_empty"
	OpContains       Operation = "contains"
	OpDoesNotContain Operation = "does_not_contain"
	OpStartsWith     Operation = "starts_with"
	OpEndsWith       Operation = "ends_with"
)

// operationFields maps each recognized operation to the fields it requires
// beyond "key" and "operation". Loaded once at init; never mutated at runtime.
var operationFields = map[Operation][]string{
	OpIs:             {"value"},
	OpIsNot:          {"value"},
	OpIsEmpty:        {},
	OpIsNotEmpty:     {},
	OpContains:       {"value"},
	OpDoesNotContain: {"value"},
	OpStartsWith:     {"value"},
	OpEndsWith:       {"value"},
}

// operationOrder keeps the user-facing listing of operations stable.
var operationOrder = []Operation{
	OpIs, OpIsNot, OpIsEmpty, OpIsNotEmpty,
	OpContains, OpDoesNotContain, OpStartsWith, OpEndsWith,
}

// Operations returns the names of the recognized operations in stable order.
func Operations() []string {
	names := make([]string, len(operationOrder))
	for i, op := range operationOrder {
		names[i] = string(op)
	}
	return names
}

// FilterClause is one key/operation/value condition within a rule.
// Value is meaningful only for operations that require it. The value
// field is always serialized, never omitted: an explicit empty-string
// value is a valid operand for the equality operations, and dropping
// the field would turn an accepted clause into an invalid one on the
// next normalization pass.
type FilterClause struct {
	Key       string    `json:"key"`
	Operation Operation `json:"operation"`
	Value     string    `json:"value"`
}

// Event is an entity-scoped payload evaluated against the cached
// predicates of its entity. Events are ephemeral; the engine never
// persists them.
type Event struct {
	// Entity names the event domain (e.g. "order", "payment").
	Entity string `json:"entity"`

	// Data holds the record's fields as strings. Absent keys are part of
	// the clause semantics (see Predicate.Matches).
	Data map[string]string `json:"data"`
}

// ActionKind discriminates the side effect an action performs.
type ActionKind string

const (
	ActionWebhook     ActionKind = "webhook"
	ActionEmail       ActionKind = "email"
	ActionFulfillment ActionKind = "fulfillment"
)

var actionKindOrder = []ActionKind{ActionWebhook, ActionEmail, ActionFulfillment}

// ActionKinds returns the recognized action kinds in stable order.
func ActionKinds() []string {
	names := make([]string, len(actionKindOrder))
	for i, k := range actionKindOrder {
		names[i] = string(k)
	}
	return names
}

// ValidateActionKind checks a raw action kind against the recognized set.
func ValidateActionKind(kind string) (ActionKind, error) {
	k := ActionKind(kind)
	for _, known := range actionKindOrder {
		if k == known {
			return k, nil
		}
	}
	return "", &InvalidActionKindError{Kind: kind, Allowed: ActionKinds()}
}

// RuleAction is the executor's snapshot of an action definition, taken
// at dispatch time. Concurrent edits to the stored row do not affect an
// in-flight dispatch.
type RuleAction struct {
	// ID is the action's opaque identifier.
	ID string

	// Name is the human-readable label.
	Name string

	// Action selects the handler (webhook, email, fulfillment).
	Action ActionKind

	// Data is the kind-dependent payload: a URL for webhook, a
	// destination for email, a script body for fulfillment.
	Data string
}
