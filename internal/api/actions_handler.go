package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/alissonpelizaro/rules-system/internal/logger"
	"github.com/alissonpelizaro/rules-system/internal/ruleengine"
	"github.com/alissonpelizaro/rules-system/internal/store"
)

// handleCreateRuleAction processes POST /api/v1/rule-actions.
func (a *API) handleCreateRuleAction(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req RuleActionRequest
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

	kind, err := ruleengine.ValidateActionKind(req.Action)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Code: "ERR_INVALID_ACTION", Message: err.Error()})
		return
	}

	action := &store.RuleAction{
		ID:     uuid.NewString(),
		Name:   req.Name,
		Action: kind,
		Data:   req.Data,
	}

	if err := a.actions.CreateRuleAction(r.Context(), action); err != nil {
		log.Error("failed to create rule action in db", slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Code: "ERR_INTERNAL", Message: "Failed to create rule action"})
		return
	}

	log.Info("rule action created",
		slog.String("action_id", action.ID),
		slog.String("kind", string(action.Action)),
	)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, mapRuleActionToResponse(action))
}

// handleGetRuleAction processes GET /api/v1/rule-actions/{id}.
func (a *API) handleGetRuleAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	action, err := a.actions.GetRuleAction(r.Context(), id)
	if err != nil {
		a.renderStoreError(w, r, err, "rule action", id)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, mapRuleActionToResponse(action))
}

// handleUpdateRuleAction processes PUT /api/v1/rule-actions/{id}.
// In-flight dispatches keep the snapshot they resolved; the new payload
// applies from the next event on.
func (a *API) handleUpdateRuleAction(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req RuleActionRequest
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

	kind, err := ruleengine.ValidateActionKind(req.Action)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Code: "ERR_INVALID_ACTION", Message: err.Error()})
		return
	}

	action := &store.RuleAction{
		ID:     id,
		Name:   req.Name,
		Action: kind,
		Data:   req.Data,
	}

	if err := a.actions.UpdateRuleAction(r.Context(), action); err != nil {
		a.renderStoreError(w, r, err, "rule action", id)
		return
	}

	log.Info("rule action updated", slog.String("action_id", id))
	render.Status(r, http.StatusOK)
	render.JSON(w, r, mapRuleActionToResponse(action))
}

// handleDeleteRuleAction processes DELETE /api/v1/rule-actions/{id}.
// Rules referencing the action keep the dangling id; it stops resolving
// at dispatch time, which is the reference semantics for action removal.
func (a *API) handleDeleteRuleAction(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := a.actions.DeleteRuleAction(r.Context(), id); err != nil {
		a.renderStoreError(w, r, err, "rule action", id)
		return
	}

	log.Info("rule action deleted", slog.String("action_id", id))
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"message": "Deleted successfully"})
}
