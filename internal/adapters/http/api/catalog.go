package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/okian/occupancy/internal/adapters/repository"
	"github.com/okian/occupancy/internal/domain/model"
	"github.com/okian/occupancy/pkg/logger"
)

// CatalogDependencies defines the interface for employees, customers and
// projects.
type CatalogDependencies interface {
	ListEmployees(ctx context.Context, filter repository.EmployeeFilter) ([]model.Employee, error)
	CreateEmployee(ctx context.Context, e model.Employee) (model.Employee, error)
	CreateCustomer(ctx context.Context, c model.Customer) (model.Customer, error)
	CreateProject(ctx context.Context, p model.Project) (model.Project, error)
	GetProject(ctx context.Context, id int64) (model.Project, error)
	UpdateProject(ctx context.Context, p model.Project) (model.Project, error)
}

// CatalogHandler handles employee, customer and project requests.
type CatalogHandler struct {
	deps   CatalogDependencies
	logger logger.Logger
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(deps CatalogDependencies, l logger.Logger) *CatalogHandler {
	return &CatalogHandler{deps: deps, logger: l.Named("catalog")}
}

// HandleListEmployees handles GET /employees?q=&role= requests.
func (h *CatalogHandler) HandleListEmployees(w http.ResponseWriter, r *http.Request) {
	filter := repository.EmployeeFilter{
		Query: r.URL.Query().Get("q"),
		Role:  r.URL.Query().Get("role"),
	}
	employees, err := h.deps.ListEmployees(r.Context(), filter)
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	if employees == nil {
		employees = []model.Employee{}
	}
	writeJSON(w, http.StatusOK, employees)
}

// HandleCreateEmployee handles POST /employees requests.
func (h *CatalogHandler) HandleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	var e model.Employee
	if err := decode(w, r, &e); err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	if strings.TrimSpace(e.Name) == "" {
		fail(r.Context(), h.logger, w, fmt.Errorf("%w: missing name", ErrBadRequest))
		return
	}
	created, err := h.deps.CreateEmployee(r.Context(), e)
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleCreateCustomer handles POST /customers requests.
func (h *CatalogHandler) HandleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var c model.Customer
	if err := decode(w, r, &c); err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	if strings.TrimSpace(c.Name) == "" {
		fail(r.Context(), h.logger, w, fmt.Errorf("%w: missing name", ErrBadRequest))
		return
	}
	created, err := h.deps.CreateCustomer(r.Context(), c)
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleCreateProject handles POST /projects requests.
func (h *CatalogHandler) HandleCreateProject(w http.ResponseWriter, r *http.Request) {
	var p model.Project
	if err := decode(w, r, &p); err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	if strings.TrimSpace(p.Name) == "" {
		fail(r.Context(), h.logger, w, fmt.Errorf("%w: missing name", ErrBadRequest))
		return
	}
	created, err := h.deps.CreateProject(r.Context(), p)
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleGetProject handles GET /projects/{projectID} requests.
func (h *CatalogHandler) HandleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "projectID")
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	p, err := h.deps.GetProject(r.Context(), id)
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleUpdateProject handles PUT /projects/{projectID} requests. The body
// replaces the project; an omitted status keeps the current one.
func (h *CatalogHandler) HandleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "projectID")
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	var p model.Project
	if err := decode(w, r, &p); err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	if strings.TrimSpace(p.Name) == "" {
		fail(r.Context(), h.logger, w, fmt.Errorf("%w: missing name", ErrBadRequest))
		return
	}
	if p.ID != 0 && p.ID != id {
		fail(r.Context(), h.logger, w, fmt.Errorf("%w: body id %d does not match path id %d", ErrBadRequest, p.ID, id))
		return
	}
	p.ID = id
	updated, err := h.deps.UpdateProject(r.Context(), p)
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

const maxBodyBytes = 1 << 20

func decode(w http.ResponseWriter, r *http.Request, into any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrBadRequest, name, raw)
	}
	return id, nil
}
