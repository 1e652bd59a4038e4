package ruleengine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation is the root of the validation error taxonomy. Every
// error returned by Normalize and ValidateActionKind matches it via
// errors.Is, so callers can map the whole family to a rejected write
// without enumerating the concrete types.
var ErrValidation = errors.New("validation failed")

// ErrInvalidFilterSpec is returned when the raw filter payload is
// present but not a list.
var ErrInvalidFilterSpec = fmt.Errorf("%w: filters must be a list", ErrValidation)

// ErrMissingFilterKey is returned when a filter element has no "key" field.
var ErrMissingFilterKey = fmt.Errorf("%w: filter is missing required field 'key'", ErrValidation)

// UnknownOperationError reports an operation outside the recognized set.
type UnknownOperationError struct {
	Operation string
	Allowed   []string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown filter operation %q, allowed operations: %s",
		e.Operation, strings.Join(e.Allowed, ", "))
}

func (e *UnknownOperationError) Is(target error) bool {
	return target == ErrValidation
}

// MissingOperationFieldError reports a filter element missing a field
// required by its operation.
type MissingOperationFieldError struct {
	Operation Operation
	Field     string
}

func (e *MissingOperationFieldError) Error() string {
	return fmt.Sprintf("operation %q requires field %q", e.Operation, e.Field)
}

func (e *MissingOperationFieldError) Is(target error) bool {
	return target == ErrValidation
}

// InvalidActionKindError reports an unrecognized action kind.
type InvalidActionKindError struct {
	Kind    string
	Allowed []string
}

func (e *InvalidActionKindError) Error() string {
	return fmt.Sprintf("unknown action kind %q, allowed kinds: %s",
		e.Kind, strings.Join(e.Allowed, ", "))
}

func (e *InvalidActionKindError) Is(target error) bool {
	return target == ErrValidation
}
