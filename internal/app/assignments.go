package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/occupancy/internal/domain/assignment"
	"github.com/okian/occupancy/internal/domain/dedupe"
	"github.com/okian/occupancy/internal/domain/interval"
	"github.com/okian/occupancy/internal/domain/model"
	"github.com/okian/occupancy/pkg/logger"
	"github.com/okian/occupancy/pkg/metrics"
)

// CreateAssignmentRequest staffs an employee on a project with one or more
// allocations. A non-empty IdempotencyKey makes retries safe.
type CreateAssignmentRequest struct {
	EmployeeID     int64
	ProjectID      int64
	Allocations    []model.AllocationDraft
	IdempotencyKey string
}

// CreateAssignment validates the drafts and persists the assignment with
// its allocations atomically. replayed is true when the key was already
// used and the stored result is returned without writing.
func (s *Service) CreateAssignment(ctx context.Context, req CreateAssignmentRequest) (created model.Assignment, replayed bool, err error) {
	if err := s.ready(); err != nil {
		return model.Assignment{}, false, err
	}

	a, allocs, err := assignment.Build(req.EmployeeID, req.ProjectID, req.Allocations)
	if err != nil {
		metrics.RecordValidationError(validationKind(err))
		return model.Assignment{}, false, err
	}

	if req.IdempotencyKey != "" {
		prev, state := s.keeper.Reserve(ctx, req.IdempotencyKey)
		switch state {
		case dedupe.Completed:
			metrics.RecordIdempotentReplay()
			s.logger.Debug(ctx, "replaying assignment creation",
				logger.String("idempotencyKey", req.IdempotencyKey),
				logger.Int64("assignmentID", prev.ID),
			)
			return prev, true, nil
		case dedupe.InFlight:
			return model.Assignment{}, false, ErrIdempotencyInFlight
		}
		defer func() {
			if err != nil {
				s.keeper.Release(ctx, req.IdempotencyKey)
				return
			}
			s.keeper.Complete(ctx, req.IdempotencyKey, created)
		}()
	}

	created, err = s.writer.CreateAssignment(ctx, a, allocs)
	if err != nil {
		return model.Assignment{}, false, fmt.Errorf("create assignment: %w", err)
	}

	metrics.RecordAssignmentCreated()
	s.logger.Info(ctx, "assignment created",
		logger.Int64("assignmentID", created.ID),
		logger.Int64("employeeID", created.EmployeeID),
		logger.Int64("projectID", created.ProjectID),
		logger.Int("allocations", len(created.Allocations)),
	)
	return created, false, nil
}

// DeleteAssignment removes an assignment and its allocations.
func (s *Service) DeleteAssignment(ctx context.Context, id int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.writer.DeleteAssignment(ctx, id); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	metrics.RecordAssignmentDeleted()
	s.logger.Info(ctx, "assignment deleted", logger.Int64("assignmentID", id))
	return nil
}

func validationKind(err error) string {
	switch {
	case errors.Is(err, assignment.ErrEmptyAllocationSet):
		return "empty_allocation_set"
	case errors.Is(err, interval.ErrInvalidInterval):
		return "invalid_interval"
	case errors.Is(err, assignment.ErrNegativeEffort):
		return "negative_effort"
	default:
		return "other"
	}
}
