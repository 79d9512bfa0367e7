package repository

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by every missing-entity error.
var ErrNotFound = errors.New("not found")

var (
	ErrEmployeeNotFound   = fmt.Errorf("employee %w", ErrNotFound)
	ErrProjectNotFound    = fmt.Errorf("project %w", ErrNotFound)
	ErrCustomerNotFound   = fmt.Errorf("customer %w", ErrNotFound)
	ErrAssignmentNotFound = fmt.Errorf("assignment %w", ErrNotFound)
)

// ErrCollaboratorUnavailable is returned when a backing store or remote
// service cannot answer.
var ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
