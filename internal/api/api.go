// Package api implements the REST API of the rules system: rule and
// rule-action administration, plus order/payment CRUD. Order and
// payment writes double as the event source: every create or update is
// dispatched through the rule engine synchronously, and the triggered
// rule ids are returned to the caller.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/alissonpelizaro/rules-system/internal/ruleengine"
	"github.com/alissonpelizaro/rules-system/internal/store"
)

// EventProcessor is the API's view of the event dispatcher.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, ev ruleengine.Event) []string
}

// API holds dependencies and the router. It follows the dependency
// injection pattern to facilitate testing: every collaborator is an
// interface.
type API struct {
	// Router is the chi multiplexer that handles HTTP requests.
	Router *chi.Mux

	logger *slog.Logger

	// rules and actions are the persistence layer for rule definitions.
	rules   store.RuleRepository
	actions store.RuleActionRepository

	// records maps entity names ("order", "payment") to their repositories.
	records map[string]store.RecordRepository

	// predicates is kept in sync with the rules table on every rule write.
	predicates ruleengine.PredicateStore

	// engine dispatches order/payment events against cached predicates.
	engine EventProcessor
}

// NewAPI creates an API instance and configures its routes.
func NewAPI(
	logger *slog.Logger,
	rules store.RuleRepository,
	actions store.RuleActionRepository,
	records []store.RecordRepository,
	predicates ruleengine.PredicateStore,
	engine EventProcessor,
) *API {
	if logger == nil {
		logger = slog.Default()
	}
	if rules == nil {
		panic("api: rule repository cannot be nil")
	}
	if actions == nil {
		panic("api: rule action repository cannot be nil")
	}
	if predicates == nil {
		panic("api: predicate store cannot be nil")
	}
	if engine == nil {
		panic("api: event processor cannot be nil")
	}

	recordsByEntity := make(map[string]store.RecordRepository, len(records))
	for _, repo := range records {
		recordsByEntity[repo.Entity()] = repo
	}

	a := &API{
		Router:     chi.NewRouter(),
		logger:     logger,
		rules:      rules,
		actions:    actions,
		records:    recordsByEntity,
		predicates: predicates,
		engine:     engine,
	}

	a.configureRoutes()
	return a
}

// configureRoutes registers the global middleware stack and endpoints.
func (a *API) configureRoutes() {
	// RequestID: unique id per request (essential for tracing).
	a.Router.Use(middleware.RequestID)
	// RealIP: correct client IP behind a proxy/LB.
	a.Router.Use(middleware.RealIP)
	// RequestLogger: structured slog line per request + metrics.
	a.Router.Use(a.requestLogger)
	// Recoverer: panics become 500s instead of crashing the server.
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))

	a.Router.Get("/health", a.handleHealthCheck)

	a.Router.Route("/api/v1", func(r chi.Router) {
		r.Route("/rules", func(r chi.Router) {
			r.Post("/", a.handleCreateRule)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.handleGetRule)
				r.Put("/", a.handleUpdateRule)
				r.Delete("/", a.handleDeleteRule)
			})
		})

		r.Route("/rule-actions", func(r chi.Router) {
			r.Post("/", a.handleCreateRuleAction)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.handleGetRuleAction)
				r.Put("/", a.handleUpdateRuleAction)
				r.Delete("/", a.handleDeleteRuleAction)
			})
		})

		// The record routes are the event source: every write dispatches
		// an event for the route's entity.
		for _, entity := range store.Entities() {
			repo, ok := a.records[entity]
			if !ok {
				continue
			}
			r.Route("/"+repo.Entity()+"s", func(r chi.Router) {
				r.Post("/", a.handleCreateRecord(repo))
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", a.handleGetRecord(repo))
					r.Put("/", a.handleUpdateRecord(repo))
					r.Delete("/", a.handleDeleteRecord(repo))
				})
			})
		}
	})
}

// handleHealthCheck reports basic liveness. Deep dependency checks live
// on the observability server's readiness probe.
func (a *API) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}
