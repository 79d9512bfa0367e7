// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/okian/occupancy/internal/adapters/repository"
	service "github.com/okian/occupancy/internal/app"
	"github.com/okian/occupancy/internal/domain/assignment"
	"github.com/okian/occupancy/internal/domain/interval"
	"github.com/okian/occupancy/internal/domain/model"
	"github.com/okian/occupancy/internal/domain/window"
	"github.com/okian/occupancy/pkg/logger"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	HeatmapDependencies
	CatalogDependencies
	AssignmentDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	heatmapHandler    *HeatmapHandler
	catalogHandler    *CatalogHandler
	assignmentHandler *AssignmentHandler

	logger logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	o := options{logger: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		heatmapHandler:    NewHeatmapHandler(deps, o.degradeOnUnavailable, o.logger),
		catalogHandler:    NewCatalogHandler(deps, o.logger),
		assignmentHandler: NewAssignmentHandler(deps, o.logger),
		logger:            o.logger,
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Use(RequestIDMiddleware)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)
	r.Get("/heatmap", s.heatmapHandler.HandleGetHeatmap)

	r.Get("/employees", s.catalogHandler.HandleListEmployees)
	r.Post("/employees", s.catalogHandler.HandleCreateEmployee)
	r.Post("/customers", s.catalogHandler.HandleCreateCustomer)
	r.Post("/projects", s.catalogHandler.HandleCreateProject)
	r.Get("/projects/{projectID}", s.catalogHandler.HandleGetProject)
	r.Put("/projects/{projectID}", s.catalogHandler.HandleUpdateProject)

	r.Get("/assignments", s.assignmentHandler.HandleListAssignments)
	r.Post("/projects/{projectID}/assignments", s.assignmentHandler.HandleCreateAssignment)
	r.Delete("/assignments/{assignmentID}", s.assignmentHandler.HandleDeleteAssignment)
	r.Get("/allocations", s.assignmentHandler.HandleListAllocations)
}

// Handler returns a chi router with every route registered.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	s.Register(ctx, r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// classify maps domain errors to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, interval.ErrInvalidInterval),
		errors.Is(err, assignment.ErrEmptyAllocationSet),
		errors.Is(err, assignment.ErrNegativeEffort),
		errors.Is(err, window.ErrInvalidWindowCount),
		errors.Is(err, window.ErrWindowCountTooLarge),
		errors.Is(err, window.ErrInvalidAnchor),
		errors.Is(err, window.ErrInvalidLabel),
		errors.Is(err, model.ErrInvalidStatus):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrIdempotencyInFlight):
		return http.StatusConflict, "conflict"
	case errors.Is(err, repository.ErrCollaboratorUnavailable):
		return http.StatusServiceUnavailable, "collaborator_unavailable"
	case errors.Is(err, service.ErrLocalStoreRequired):
		return http.StatusNotImplemented, "not_implemented"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// fail writes err with its classified status and logs server-side failures.
func fail(ctx context.Context, l logger.Logger, w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		l.Error(ctx, "request failed", logger.Int("status", status), logger.Error(err))
	}
	writeError(w, status, code, err)
}

var _ Dependencies = (*service.Service)(nil)
