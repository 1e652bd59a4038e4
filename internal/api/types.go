package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alissonpelizaro/rules-system/internal/ruleengine"
	"github.com/alissonpelizaro/rules-system/internal/store"
)

// ErrorResponse represents a standard structured API error.
type ErrorResponse struct {
	// Code is a machine-readable error code (e.g. "ERR_INVALID_INPUT").
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`
}

// RuleRequest is the payload for creating or replacing a rule.
type RuleRequest struct {
	// Name is the human-readable label. Required.
	Name string `json:"name"`

	// Entity names the event domain the rule filters against. Required.
	Entity string `json:"entity"`

	// Enabled defaults to true when omitted on create. On update, an
	// omitted value keeps the stored one.
	Enabled *bool `json:"enabled,omitempty"`

	// Filters is the raw filter specification; it is normalized and
	// type-checked before anything is persisted.
	Filters json.RawMessage `json:"filters,omitempty"`

	// Actions lists rule-action ids. Ids that do not resolve are
	// silently dropped.
	Actions []string `json:"actions,omitempty"`
}

// Sanitize trims user-controlled text fields in place.
func (r *RuleRequest) Sanitize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Entity = strings.TrimSpace(r.Entity)
}

// Validate checks the request against business rules. It returns a
// structured *ErrorResponse if validation fails, or nil if valid.
func (r *RuleRequest) Validate() *ErrorResponse {
	if r.Name == "" {
		return &ErrorResponse{Code: "ERR_INVALID_INPUT", Message: "Name is required"}
	}
	if len(r.Name) > 255 {
		return &ErrorResponse{Code: "ERR_INVALID_INPUT", Message: "Name must be less than 255 characters"}
	}
	if r.Entity == "" {
		return &ErrorResponse{Code: "ERR_INVALID_INPUT", Message: "Entity is required"}
	}
	return nil
}

// RuleResponse is the API representation of a stored rule.
type RuleResponse struct {
	ID        string                    `json:"id"`
	Name      string                    `json:"name"`
	Entity    string                    `json:"entity"`
	Enabled   bool                      `json:"enabled"`
	Filters   []ruleengine.FilterClause `json:"filters"`
	Actions   []string                  `json:"actions"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// mapRuleToResponse converts the DB entity to the API response DTO,
// normalizing nil slices to empty ones so clients always see arrays.
func mapRuleToResponse(r *store.Rule) RuleResponse {
	filters := r.Filters
	if filters == nil {
		filters = []ruleengine.FilterClause{}
	}
	actions := r.Actions
	if actions == nil {
		actions = []string{}
	}

	return RuleResponse{
		ID:        r.ID,
		Name:      r.Name,
		Entity:    r.Entity,
		Enabled:   r.Enabled,
		Filters:   filters,
		Actions:   actions,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// RuleActionRequest is the payload for creating or replacing an action.
type RuleActionRequest struct {
	// Name is the human-readable label. Required.
	Name string `json:"name"`

	// Action is the kind: webhook, email, or fulfillment. Required.
	Action string `json:"action"`

	// Data is the kind-dependent payload (URL, destination, script body).
	Data string `json:"data"`
}

// Sanitize trims user-controlled text fields in place.
func (r *RuleActionRequest) Sanitize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Action = strings.TrimSpace(r.Action)
}

// Validate checks the request against business rules. The action kind
// itself is validated separately through ruleengine.ValidateActionKind
// so the error carries the allowed list.
func (r *RuleActionRequest) Validate() *ErrorResponse {
	if r.Name == "" {
		return &ErrorResponse{Code: "ERR_INVALID_INPUT", Message: "Name is required"}
	}
	if len(r.Name) > 255 {
		return &ErrorResponse{Code: "ERR_INVALID_INPUT", Message: "Name must be less than 255 characters"}
	}
	return nil
}

// RuleActionResponse is the API representation of a stored action.
type RuleActionResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Action    string    `json:"action"`
	Data      string    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func mapRuleActionToResponse(a *store.RuleAction) RuleActionResponse {
	return RuleActionResponse{
		ID:        a.ID,
		Name:      a.Name,
		Action:    string(a.Action),
		Data:      a.Data,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// RecordResponse is the API representation of an order/payment record.
// TriggeredRules is only populated on writes, where the record's data
// was dispatched as an event.
type RecordResponse struct {
	ID             string            `json:"id"`
	Data           map[string]string `json:"data"`
	TriggeredRules []string          `json:"triggered_rules,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func mapRecordToResponse(r *store.Record, triggered []string) RecordResponse {
	data := r.Data
	if data == nil {
		data = map[string]string{}
	}
	return RecordResponse{
		ID:             r.ID,
		Data:           data,
		TriggeredRules: triggered,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// decodeRecordData coerces an arbitrary JSON object into the engine's
// string-to-string event shape: nulls become empty strings, scalars are
// stringified, nested values are rejected.
func decodeRecordData(raw json.RawMessage) (map[string]string, *ErrorResponse) {
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, &ErrorResponse{
			Code:    "ERR_INVALID_JSON",
			Message: "Payload must be a JSON object",
		}
	}

	data := make(map[string]string, len(generic))
	for key, value := range generic {
		switch v := value.(type) {
		case nil:
			data[key] = ""
		case string:
			data[key] = v
		case bool:
			data[key] = fmt.Sprint(v)
		case float64:
			data[key] = trimFloat(v)
		default:
			return nil, &ErrorResponse{
				Code:    "ERR_INVALID_INPUT",
				Message: fmt.Sprintf("Field %q must be a scalar value", key),
			}
		}
	}
	return data, nil
}

// trimFloat renders a JSON number without a trailing ".0" for integers.
func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(f)
}
