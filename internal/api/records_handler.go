package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/alissonpelizaro/rules-system/internal/logger"
	"github.com/alissonpelizaro/rules-system/internal/ruleengine"
	"github.com/alissonpelizaro/rules-system/internal/store"
)

// handleCreateRecord returns the POST handler for a record entity. The
// write and the rule dispatch share the request: the response carries
// the ids of the rules the new record triggered.
func (a *API) handleCreateRecord(repo store.RecordRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		raw, err := io.ReadAll(r.Body)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, ErrorResponse{Code: "ERR_INVALID_JSON", Message: "Failed to read request body"})
			return
		}

		data, errResp := decodeRecordData(json.RawMessage(raw))
		if errResp != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, errResp)
			return
		}

		rec := &store.Record{
			ID:   uuid.NewString(),
			Data: data,
		}

		if err := repo.CreateRecord(r.Context(), rec); err != nil {
			log.Error("failed to create record in db",
				slog.String("entity", repo.Entity()),
				slog.String("error", err.Error()),
			)
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, ErrorResponse{Code: "ERR_INTERNAL", Message: "Failed to create record"})
			return
		}

		triggered := a.engine.ProcessEvent(r.Context(), ruleengine.Event{
			Entity: repo.Entity(),
			Data:   rec.Data,
		})

		log.Info("record created",
			slog.String("entity", repo.Entity()),
			slog.String("record_id", rec.ID),
			slog.Int("rules_triggered", len(triggered)),
		)
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, mapRecordToResponse(rec, triggered))
	}
}

// handleGetRecord returns the GET handler for a record entity. Reads do
// not run rules.
func (a *API) handleGetRecord(repo store.RecordRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		rec, err := repo.GetRecord(r.Context(), id)
		if err != nil {
			a.renderStoreError(w, r, err, repo.Entity(), id)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, mapRecordToResponse(rec, nil))
	}
}

// handleUpdateRecord returns the PUT handler for a record entity. The
// payload replaces the record's data wholesale, and the updated state is
// evaluated against the rule set like a fresh event.
func (a *API) handleUpdateRecord(repo store.RecordRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())
		id := chi.URLParam(r, "id")

		raw, err := io.ReadAll(r.Body)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, ErrorResponse{Code: "ERR_INVALID_JSON", Message: "Failed to read request body"})
			return
		}

		data, errResp := decodeRecordData(json.RawMessage(raw))
		if errResp != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, errResp)
			return
		}

		rec := &store.Record{
			ID:   id,
			Data: data,
		}

		if err := repo.UpdateRecord(r.Context(), rec); err != nil {
			a.renderStoreError(w, r, err, repo.Entity(), id)
			return
		}

		triggered := a.engine.ProcessEvent(r.Context(), ruleengine.Event{
			Entity: repo.Entity(),
			Data:   rec.Data,
		})

		log.Info("record updated",
			slog.String("entity", repo.Entity()),
			slog.String("record_id", id),
			slog.Int("rules_triggered", len(triggered)),
		)
		render.Status(r, http.StatusOK)
		render.JSON(w, r, mapRecordToResponse(rec, triggered))
	}
}

// handleDeleteRecord returns the DELETE handler for a record entity.
// Deletions are not events; no rules run.
func (a *API) handleDeleteRecord(repo store.RecordRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())
		id := chi.URLParam(r, "id")

		if err := repo.DeleteRecord(r.Context(), id); err != nil {
			a.renderStoreError(w, r, err, repo.Entity(), id)
			return
		}

		log.Info("record deleted",
			slog.String("entity", repo.Entity()),
			slog.String("record_id", id),
		)
		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"message": "Deleted successfully"})
	}
}
