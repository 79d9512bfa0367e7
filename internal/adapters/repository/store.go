// Package repository defines the storage collaborators the service reads
// employees, assignments and allocations from, and their errors.
package repository

import (
	"context"
	"strings"

	"github.com/okian/occupancy/internal/domain/interval"
	"github.com/okian/occupancy/internal/domain/model"
)

// EmployeeFilter narrows ListEmployees. Empty fields match everything.
type EmployeeFilter struct {
	// Query matches a case-insensitive substring of name, email or role.
	Query string
	// Role matches the role exactly.
	Role string
}

// Match reports whether e passes the filter.
func (f EmployeeFilter) Match(e model.Employee) bool {
	if f.Role != "" && e.Role != f.Role {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Name), q) ||
		strings.Contains(strings.ToLower(e.Email), q) ||
		strings.Contains(strings.ToLower(e.Role), q)
}

// EmployeeDirectory lists employees.
type EmployeeDirectory interface {
	ListEmployees(ctx context.Context, filter EmployeeFilter) ([]model.Employee, error)
}

// AssignmentReader lists assignments and allocations.
type AssignmentReader interface {
	// ListAssignments returns every assignment with its derived span.
	ListAssignments(ctx context.Context) ([]model.Assignment, error)

	// ListAllocations returns allocations overlapping rng, or all of them
	// when rng is nil. Overlap is inclusive on both ends.
	ListAllocations(ctx context.Context, rng *interval.Interval) ([]model.Allocation, error)
}

// AssignmentWriter persists assignments.
type AssignmentWriter interface {
	// CreateAssignment stores a and allocs atomically: either every row is
	// written or none. Returns ErrEmployeeNotFound or ErrProjectNotFound on
	// dangling references.
	CreateAssignment(ctx context.Context, a model.Assignment, allocs []model.Allocation) (model.Assignment, error)

	// DeleteAssignment removes the assignment and its allocations.
	DeleteAssignment(ctx context.Context, id int64) error
}

// Snapshot is every employee, assignment and allocation as of one instant.
type Snapshot struct {
	Employees   []model.Employee
	Assignments []model.Assignment
	Allocations []model.Allocation
}

// SnapshotReader reads employees, assignments and allocations together so no
// write can land between them. Allocations are limited to those overlapping
// rng, or all of them when rng is nil.
type SnapshotReader interface {
	Snapshot(ctx context.Context, rng *interval.Interval) (Snapshot, error)
}

// Store is the full local storage surface.
type Store interface {
	EmployeeDirectory
	AssignmentReader
	AssignmentWriter
	SnapshotReader

	CreateEmployee(ctx context.Context, e model.Employee) (model.Employee, error)
	CreateCustomer(ctx context.Context, c model.Customer) (model.Customer, error)
	CreateProject(ctx context.Context, p model.Project) (model.Project, error)
	GetProject(ctx context.Context, id int64) (model.Project, error)

	// UpdateProject replaces the stored fields of project p.ID. An empty
	// status keeps the current one.
	UpdateProject(ctx context.Context, p model.Project) (model.Project, error)

	// Count returns the number of employees, assignments and allocations.
	Count(ctx context.Context) Counts

	Close() error
}

// Counts summarizes store size for stats.
type Counts struct {
	Employees   int `json:"employees"`
	Assignments int `json:"assignments"`
	Allocations int `json:"allocations"`
}
