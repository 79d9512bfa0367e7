package assignment

import (
	"errors"
	"fmt"
)

// Sentinel kinds for assignment validation errors.
var (
	ErrEmptyAllocationSet = errors.New("assignment has no allocations")
	ErrNegativeEffort     = errors.New("effort percent must not be negative")
)

// DraftError identifies the allocation draft that failed validation.
type DraftError struct {
	Index int
	Err   error
}

func (e *DraftError) Error() string {
	return fmt.Sprintf("allocation %d: %v", e.Index, e.Err)
}

func (e *DraftError) Unwrap() error { return e.Err }
