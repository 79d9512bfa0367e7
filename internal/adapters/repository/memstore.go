package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/occupancy/internal/domain/assignment"
	"github.com/okian/occupancy/internal/domain/interval"
	"github.com/okian/occupancy/internal/domain/model"
	"github.com/okian/occupancy/pkg/logger"
	"github.com/okian/occupancy/pkg/metrics"
)

// MemoryStore is an in-memory Store. All writes happen under one lock so a
// CreateAssignment is visible either completely or not at all.
type MemoryStore struct {
	mu sync.RWMutex

	employees   map[int64]model.Employee
	customers   map[int64]model.Customer
	projects    map[int64]model.Project
	assignments map[int64]model.Assignment // span is recomputed on read
	allocations map[int64]model.Allocation

	nextID int64
	logger logger.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := applyOptions(opts)
	return &MemoryStore{
		employees:   make(map[int64]model.Employee),
		customers:   make(map[int64]model.Customer),
		projects:    make(map[int64]model.Project),
		assignments: make(map[int64]model.Assignment),
		allocations: make(map[int64]model.Allocation),
		logger:      o.logger.Named("memstore"),
	}
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

// CreateEmployee stores e and assigns its id.
func (s *MemoryStore) CreateEmployee(_ context.Context, e model.Employee) (model.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.id()
	s.employees[e.ID] = e
	return e, nil
}

// CreateCustomer stores c and assigns its id.
func (s *MemoryStore) CreateCustomer(_ context.Context, c model.Customer) (model.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	s.customers[c.ID] = c
	return c, nil
}

// CreateProject stores p after checking its customer exists.
func (s *MemoryStore) CreateProject(_ context.Context, p model.Project) (model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[p.CustomerID]; !ok {
		return model.Project{}, fmt.Errorf("customer %d: %w", p.CustomerID, ErrCustomerNotFound)
	}
	if p.Status == "" {
		p.Status = model.StatusLead
	}
	p.ID = s.id()
	s.projects[p.ID] = p
	return p, nil
}

// GetProject returns the project with id.
func (s *MemoryStore) GetProject(_ context.Context, id int64) (model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return model.Project{}, fmt.Errorf("project %d: %w", id, ErrProjectNotFound)
	}
	return p, nil
}

// UpdateProject replaces the fields of an existing project.
func (s *MemoryStore) UpdateProject(_ context.Context, p model.Project) (model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.projects[p.ID]
	if !ok {
		return model.Project{}, fmt.Errorf("project %d: %w", p.ID, ErrProjectNotFound)
	}
	if _, ok := s.customers[p.CustomerID]; !ok {
		return model.Project{}, fmt.Errorf("customer %d: %w", p.CustomerID, ErrCustomerNotFound)
	}
	if p.Status == "" {
		p.Status = current.Status
	}
	s.projects[p.ID] = p
	return p, nil
}

// ListEmployees returns employees matching filter ordered by id.
func (s *MemoryStore) ListEmployees(_ context.Context, filter EmployeeFilter) ([]model.Employee, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency("employees", msSince(start)) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listEmployees(filter), nil
}

func (s *MemoryStore) listEmployees(filter EmployeeFilter) []model.Employee {
	out := make([]model.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		if filter.Match(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListAssignments returns assignments ordered by id with spans derived from
// their current allocations.
func (s *MemoryStore) ListAssignments(_ context.Context) ([]model.Assignment, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency("assignments", msSince(start)) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listAssignments(), nil
}

func (s *MemoryStore) listAssignments() []model.Assignment {
	byAssignment := make(map[int64][]model.Allocation, len(s.assignments))
	for _, al := range s.allocations {
		byAssignment[al.AssignmentID] = append(byAssignment[al.AssignmentID], al)
	}

	out := make([]model.Assignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		if span, ok := assignment.Span(byAssignment[a.ID]); ok {
			a.StartDate, a.EndDate = span.StartDate, span.EndDate
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListAllocations returns allocations overlapping rng ordered by id.
func (s *MemoryStore) ListAllocations(_ context.Context, rng *interval.Interval) ([]model.Allocation, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency("allocations", msSince(start)) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listAllocations(rng), nil
}

func (s *MemoryStore) listAllocations(rng *interval.Interval) []model.Allocation {
	out := make([]model.Allocation, 0, len(s.allocations))
	for _, al := range s.allocations {
		if rng != nil && !interval.Overlaps(al.Interval(), *rng) {
			continue
		}
		out = append(out, al)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Snapshot reads employees, assignments and allocations under one read lock.
func (s *MemoryStore) Snapshot(_ context.Context, rng *interval.Interval) (Snapshot, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency("snapshot", msSince(start)) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Employees:   s.listEmployees(EmployeeFilter{}),
		Assignments: s.listAssignments(),
		Allocations: s.listAllocations(rng),
	}, nil
}

// CreateAssignment stores a and allocs under a single lock.
func (s *MemoryStore) CreateAssignment(ctx context.Context, a model.Assignment, allocs []model.Allocation) (model.Assignment, error) {
	if len(allocs) == 0 {
		return model.Assignment{}, assignment.ErrEmptyAllocationSet
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.employees[a.EmployeeID]; !ok {
		return model.Assignment{}, fmt.Errorf("employee %d: %w", a.EmployeeID, ErrEmployeeNotFound)
	}
	if _, ok := s.projects[a.ProjectID]; !ok {
		return model.Assignment{}, fmt.Errorf("project %d: %w", a.ProjectID, ErrProjectNotFound)
	}

	a.ID = s.id()
	stored := make([]model.Allocation, len(allocs))
	for i, al := range allocs {
		al.ID = s.id()
		al.AssignmentID = a.ID
		stored[i] = al
	}
	span, _ := assignment.Span(stored)
	a.StartDate, a.EndDate = span.StartDate, span.EndDate
	a.Allocations = nil

	s.assignments[a.ID] = a
	for _, al := range stored {
		s.allocations[al.ID] = al
	}

	s.logger.Debug(ctx, "assignment created",
		logger.Int64("assignmentID", a.ID),
		logger.Int("allocations", len(stored)),
	)
	a.Allocations = stored
	return a, nil
}

// DeleteAssignment removes the assignment and its allocations.
func (s *MemoryStore) DeleteAssignment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[id]; !ok {
		return fmt.Errorf("assignment %d: %w", id, ErrAssignmentNotFound)
	}
	delete(s.assignments, id)
	for aid, al := range s.allocations {
		if al.AssignmentID == id {
			delete(s.allocations, aid)
		}
	}
	return nil
}

// Count returns current row counts.
func (s *MemoryStore) Count(_ context.Context) Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Employees:   len(s.employees),
		Assignments: len(s.assignments),
		Allocations: len(s.allocations),
	}
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
