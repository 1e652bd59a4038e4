package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/alissonpelizaro/rules-system/internal/logger"
	"github.com/alissonpelizaro/rules-system/internal/ruleengine"
	"github.com/alissonpelizaro/rules-system/internal/store"
)

// handleCreateRule processes POST /api/v1/rules.
//
// Validation happens before any persistence or cache mutation: a rule is
// never partially applied. On success the compiled predicate is
// published so the rule participates in event matching immediately.
func (a *API) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req RuleRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Code: "ERR_INVALID_JSON", Message: "Invalid JSON payload: " + err.Error()})
		return
	}

	req.Sanitize()
	if errResp := req.Validate(); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	filters, err := ruleengine.Normalize(req.Filters)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Code: "ERR_INVALID_FILTER", Message: err.Error()})
		return
	}

	// Trim the actions field to ids that actually resolve; unknown ids
	// are silently dropped rather than rejected.
	actionIDs, err := a.actions.ResolveIDs(r.Context(), req.Actions)
	if err != nil {
		log.Error("failed to resolve action ids", slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Code: "ERR_INTERNAL", Message: "Failed to validate rule actions"})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	rule := &store.Rule{
		ID:      uuid.NewString(),
		Name:    req.Name,
		Entity:  req.Entity,
		Enabled: enabled,
		Filters: filters,
		Actions: actionIDs,
	}

	if err := a.rules.CreateRule(r.Context(), rule); err != nil {
		log.Error("failed to create rule in db", slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Code: "ERR_INTERNAL", Message: "Failed to create rule"})
		return
	}

	a.syncRulePredicate(r.Context(), rule)

	log.Info("rule created", slog.String("rule_id", rule.ID), slog.String("entity", rule.Entity))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, mapRuleToResponse(rule))
}

// handleGetRule processes GET /api/v1/rules/{id}.
func (a *API) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rule, err := a.rules.GetRule(r.Context(), id)
	if err != nil {
		a.renderStoreError(w, r, err, "rule", id)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, mapRuleToResponse(rule))
}

// handleUpdateRule processes PUT /api/v1/rules/{id}.
//
// The predicate cache follows the reference synchronization policy:
// delete the entry under the old entity first, then republish under the
// new state. The two calls are not atomic; the syncer heals any window
// a crash leaves behind.
func (a *API) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	id := chi.URLParam(r, "id")

	existing, err := a.rules.GetRule(r.Context(), id)
	if err != nil {
		a.renderStoreError(w, r, err, "rule", id)
		return
	}

	var req RuleRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Code: "ERR_INVALID_JSON", Message: "Invalid JSON payload: " + err.Error()})
		return
	}

	req.Sanitize()
	if errResp := req.Validate(); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	filters, err := ruleengine.Normalize(req.Filters)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Code: "ERR_INVALID_FILTER", Message: err.Error()})
		return
	}

	actionIDs, err := a.actions.ResolveIDs(r.Context(), req.Actions)
	if err != nil {
		log.Error("failed to resolve action ids", slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Code: "ERR_INTERNAL", Message: "Failed to validate rule actions"})
		return
	}

	enabled := existing.Enabled
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	// Drop the old predicate before the row changes; the entity may be
	// different afterwards.
	if err := a.predicates.Delete(r.Context(), existing.Entity, existing.ID); err != nil {
		log.Warn("failed to delete stale predicate",
			slog.String("rule_id", existing.ID),
			slog.String("error", err.Error()),
		)
	}

	updated := &store.Rule{
		ID:        existing.ID,
		Name:      req.Name,
		Entity:    req.Entity,
		Enabled:   enabled,
		Filters:   filters,
		Actions:   actionIDs,
		CreatedAt: existing.CreatedAt,
	}

	if err := a.rules.UpdateRule(r.Context(), updated); err != nil {
		a.renderStoreError(w, r, err, "rule", id)
		return
	}

	a.syncRulePredicate(r.Context(), updated)

	log.Info("rule updated", slog.String("rule_id", updated.ID), slog.String("entity", updated.Entity))
	render.Status(r, http.StatusOK)
	render.JSON(w, r, mapRuleToResponse(updated))
}

// handleDeleteRule processes DELETE /api/v1/rules/{id}. The predicate is
// removed from the cache so the rule stops matching immediately, even
// though a stale read of the row may still be in flight elsewhere.
func (a *API) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	id := chi.URLParam(r, "id")

	rule, err := a.rules.GetRule(r.Context(), id)
	if err != nil {
		a.renderStoreError(w, r, err, "rule", id)
		return
	}

	if err := a.rules.DeleteRule(r.Context(), id); err != nil {
		a.renderStoreError(w, r, err, "rule", id)
		return
	}

	if err := a.predicates.Delete(r.Context(), rule.Entity, rule.ID); err != nil {
		log.Warn("failed to delete predicate of removed rule",
			slog.String("rule_id", rule.ID),
			slog.String("error", err.Error()),
		)
	}

	log.Info("rule deleted", slog.String("rule_id", id))
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"message": "Deleted successfully"})
}

// syncRulePredicate publishes or removes the compiled predicate for a
// rule according to its enabled state. Cache errors are logged, never
// surfaced: the cache is eventually consistent and the syncer repairs it.
func (a *API) syncRulePredicate(ctx context.Context, rule *store.Rule) {
	log := logger.FromContext(ctx)

	if rule.Enabled {
		pred := ruleengine.Compile(rule.Entity, rule.Filters)
		if err := a.predicates.Put(ctx, rule.Entity, rule.ID, pred); err != nil {
			log.Warn("failed to publish predicate",
				slog.String("rule_id", rule.ID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	if err := a.predicates.Delete(ctx, rule.Entity, rule.ID); err != nil {
		log.Warn("failed to remove predicate of disabled rule",
			slog.String("rule_id", rule.ID),
			slog.String("error", err.Error()),
		)
	}
}

// renderStoreError maps store errors to HTTP responses.
func (a *API) renderStoreError(w http.ResponseWriter, r *http.Request, err error, kind, id string) {
	if errors.Is(err, store.ErrNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_NOT_FOUND",
			Message: kind + " with id '" + id + "' not found",
		})
		return
	}

	logger.FromContext(r.Context()).Error("store operation failed",
		slog.String("kind", kind),
		slog.String("id", id),
		slog.String("error", err.Error()),
	)
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, ErrorResponse{Code: "ERR_INTERNAL", Message: "Internal server error"})
}
