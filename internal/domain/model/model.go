// Package model contains domain models passed between layers.
package model

import (
	"cloud.google.com/go/civil"
	"github.com/okian/occupancy/internal/domain/interval"
)

// ProjectStatus is the sales pipeline stage of a project.
type ProjectStatus string

// Project pipeline stages.
const (
	StatusLead       ProjectStatus = "Lead"
	StatusProposal   ProjectStatus = "Proposal"
	StatusContracted ProjectStatus = "Contracted"
	StatusCompleted  ProjectStatus = "Completed"
	StatusLost       ProjectStatus = "Lost"
)

// Valid reports whether s is a known status.
func (s ProjectStatus) Valid() bool {
	switch s {
	case StatusLead, StatusProposal, StatusContracted, StatusCompleted, StatusLost:
		return true
	}
	return false
}

// Employee is a consultant whose capacity is allocated to projects.
type Employee struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
	CostRate int64  `json:"cost_rate"` // monthly standard cost
}

// Customer owns projects.
type Customer struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Industry string `json:"industry,omitempty"`
}

// Project is a customer engagement employees are staffed on.
type Project struct {
	ID             int64         `json:"id"`
	Name           string        `json:"name"`
	CustomerID     int64         `json:"customer_id"`
	Status         ProjectStatus `json:"status"`
	ContractAmount int64         `json:"contract_amount"`
	StartDate      civil.Date    `json:"start_date"`
	EndDate        civil.Date    `json:"end_date"`
}

// Assignment staffs one employee on one project. StartDate and EndDate are
// derived from the allocations and never set independently.
type Assignment struct {
	ID          int64        `json:"id"`
	EmployeeID  int64        `json:"employee_id"`
	ProjectID   int64        `json:"project_id"`
	StartDate   civil.Date   `json:"start_date"`
	EndDate     civil.Date   `json:"end_date"`
	Allocations []Allocation `json:"allocations,omitempty"`
}

// Span returns the derived assignment interval.
func (a Assignment) Span() interval.Interval {
	return interval.Interval{Start: a.StartDate, End: a.EndDate}
}

// Allocation commits EffortPercent of an employee's capacity to an
// assignment for every day in [StartDate, EndDate]. Allocations are
// immutable; updates are a delete followed by a create.
type Allocation struct {
	ID            int64      `json:"id"`
	AssignmentID  int64      `json:"assignment_id"`
	StartDate     civil.Date `json:"start_date"`
	EndDate       civil.Date `json:"end_date"`
	EffortPercent float64    `json:"effort_percent"`
}

// Interval returns the allocation's date range.
func (a Allocation) Interval() interval.Interval {
	return interval.Interval{Start: a.StartDate, End: a.EndDate}
}

// AllocationDraft is an allocation that has not been persisted yet.
type AllocationDraft struct {
	StartDate     civil.Date `json:"start_date"`
	EndDate       civil.Date `json:"end_date"`
	EffortPercent float64    `json:"effort_percent"`
}

// Interval returns the draft's date range.
func (d AllocationDraft) Interval() interval.Interval {
	return interval.Interval{Start: d.StartDate, End: d.EndDate}
}
