// Package assignment validates allocation drafts and derives the span of a
// new assignment before anything is written.
package assignment

import (
	"github.com/okian/occupancy/internal/domain/model"
)

// Build validates drafts and returns the assignment with its derived span
// together with the allocations to persist. IDs are left for the store to
// assign. Nothing is returned on error.
func Build(employeeID, projectID int64, drafts []model.AllocationDraft) (model.Assignment, []model.Allocation, error) {
	if len(drafts) == 0 {
		return model.Assignment{}, nil, ErrEmptyAllocationSet
	}
	if err := Validate(drafts); err != nil {
		return model.Assignment{}, nil, err
	}

	a := model.Assignment{
		EmployeeID: employeeID,
		ProjectID:  projectID,
		StartDate:  drafts[0].StartDate,
		EndDate:    drafts[0].EndDate,
	}
	allocs := make([]model.Allocation, len(drafts))
	for i, d := range drafts {
		if d.StartDate.Before(a.StartDate) {
			a.StartDate = d.StartDate
		}
		if d.EndDate.After(a.EndDate) {
			a.EndDate = d.EndDate
		}
		allocs[i] = model.Allocation{
			StartDate:     d.StartDate,
			EndDate:       d.EndDate,
			EffortPercent: d.EffortPercent,
		}
	}
	return a, allocs, nil
}

// Validate checks every draft and reports the first offending one as a
// *DraftError.
func Validate(drafts []model.AllocationDraft) error {
	for i, d := range drafts {
		if err := d.Interval().Validate(); err != nil {
			return &DraftError{Index: i, Err: err}
		}
		if d.EffortPercent < 0 {
			return &DraftError{Index: i, Err: ErrNegativeEffort}
		}
	}
	return nil
}

// Span derives (min start, max end) from persisted allocations. ok is false
// when allocs is empty.
func Span(allocs []model.Allocation) (a model.Assignment, ok bool) {
	if len(allocs) == 0 {
		return model.Assignment{}, false
	}
	a.StartDate, a.EndDate = allocs[0].StartDate, allocs[0].EndDate
	for _, al := range allocs[1:] {
		if al.StartDate.Before(a.StartDate) {
			a.StartDate = al.StartDate
		}
		if al.EndDate.After(a.EndDate) {
			a.EndDate = al.EndDate
		}
	}
	return a, true
}
