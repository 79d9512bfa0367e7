package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/civil"
	service "github.com/okian/occupancy/internal/app"
	"github.com/okian/occupancy/internal/domain/interval"
	"github.com/okian/occupancy/internal/domain/model"
	"github.com/okian/occupancy/pkg/logger"
)

// IdempotencyKeyHeader makes POST /projects/{projectID}/assignments safe to retry.
const IdempotencyKeyHeader = "Idempotency-Key"

// AssignmentDependencies defines the interface for assignment operations.
type AssignmentDependencies interface {
	ListAssignments(ctx context.Context) ([]model.Assignment, error)
	ListAllocations(ctx context.Context, rng *interval.Interval) ([]model.Allocation, error)
	CreateAssignment(ctx context.Context, req service.CreateAssignmentRequest) (model.Assignment, bool, error)
	DeleteAssignment(ctx context.Context, id int64) error
}

// AssignmentHandler handles assignment and allocation requests.
type AssignmentHandler struct {
	deps   AssignmentDependencies
	logger logger.Logger
}

// NewAssignmentHandler creates a new assignment handler.
func NewAssignmentHandler(deps AssignmentDependencies, l logger.Logger) *AssignmentHandler {
	return &AssignmentHandler{deps: deps, logger: l.Named("assignments")}
}

// createAssignmentRequest is the body of POST /projects/{projectID}/assignments.
type createAssignmentRequest struct {
	EmployeeID  int64                   `json:"employee_id"`
	Allocations []model.AllocationDraft `json:"allocations"`
}

// HandleListAssignments handles GET /assignments requests.
func (h *AssignmentHandler) HandleListAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.deps.ListAssignments(r.Context())
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	if assignments == nil {
		assignments = []model.Assignment{}
	}
	writeJSON(w, http.StatusOK, assignments)
}

// HandleListAllocations handles GET /allocations?start_date=&end_date=
// requests. Both bounds or neither must be given.
func (h *AssignmentHandler) HandleListAllocations(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	allocations, err := h.deps.ListAllocations(r.Context(), rng)
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	if allocations == nil {
		allocations = []model.Allocation{}
	}
	writeJSON(w, http.StatusOK, allocations)
}

// HandleCreateAssignment handles POST /projects/{projectID}/assignments.
// A replayed Idempotency-Key answers 200 with the original assignment.
func (h *AssignmentHandler) HandleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	var body createAssignmentRequest
	if err := decode(w, r, &body); err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	if body.EmployeeID <= 0 {
		fail(r.Context(), h.logger, w, fmt.Errorf("%w: missing employee_id", ErrBadRequest))
		return
	}

	created, replayed, err := h.deps.CreateAssignment(r.Context(), service.CreateAssignmentRequest{
		EmployeeID:     body.EmployeeID,
		ProjectID:      projectID,
		Allocations:    body.Allocations,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)),
	})
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	w.Header().Set("Location", fmt.Sprintf("/assignments/%d", created.ID))
	writeJSON(w, status, created)
}

// HandleDeleteAssignment handles DELETE /assignments/{assignmentID}.
func (h *AssignmentHandler) HandleDeleteAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "assignmentID")
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	if err := h.deps.DeleteAssignment(r.Context(), id); err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseRange(r *http.Request) (*interval.Interval, error) {
	rawStart := strings.TrimSpace(r.URL.Query().Get("start_date"))
	rawEnd := strings.TrimSpace(r.URL.Query().Get("end_date"))
	if rawStart == "" && rawEnd == "" {
		return nil, nil
	}
	if rawStart == "" || rawEnd == "" {
		return nil, fmt.Errorf("%w: start_date and end_date must be given together", ErrBadRequest)
	}
	start, err := civil.ParseDate(rawStart)
	if err != nil {
		return nil, fmt.Errorf("%w: start_date: %w", ErrBadRequest, err)
	}
	end, err := civil.ParseDate(rawEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: end_date: %w", ErrBadRequest, err)
	}
	rng, err := interval.New(start, end)
	if err != nil {
		return nil, err
	}
	return &rng, nil
}
