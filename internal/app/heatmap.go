package service

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/okian/occupancy/internal/adapters/repository"
	"github.com/okian/occupancy/internal/domain/assignment"
	"github.com/okian/occupancy/internal/domain/heatmap"
	"github.com/okian/occupancy/internal/domain/interval"
	"github.com/okian/occupancy/internal/domain/model"
	"github.com/okian/occupancy/internal/domain/window"
	"github.com/okian/occupancy/pkg/logger"
	"github.com/okian/occupancy/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// HeatmapQuery selects the heatmap to build. A zero Anchor means today and
// zero Months means the configured default.
type HeatmapQuery struct {
	Anchor civil.Date
	Months int
	Filter repository.EmployeeFilter
}

// Resolve fills in the default anchor and month count and validates q.
func (s *Service) Resolve(q HeatmapQuery) (HeatmapQuery, error) {
	if q.Months == 0 {
		q.Months = s.defaultMonths
	}
	if q.Months < 0 {
		return q, fmt.Errorf("%w: %d", window.ErrInvalidWindowCount, q.Months)
	}
	if q.Months > s.maxMonths {
		return q, fmt.Errorf("%w: %d (allowed 1..%d)", window.ErrWindowCountTooLarge, q.Months, s.maxMonths)
	}
	if q.Anchor == (civil.Date{}) {
		q.Anchor = civil.DateOf(s.now())
	}
	if !q.Anchor.IsValid() {
		return q, fmt.Errorf("%w: %s", window.ErrInvalidAnchor, q.Anchor)
	}
	return q, nil
}

// Heatmap builds the utilization heatmap for q. Any collaborator failure
// fails the whole request; nothing partial is returned.
func (s *Service) Heatmap(ctx context.Context, q HeatmapQuery) (heatmap.Heatmap, error) {
	if err := s.ready(); err != nil {
		return heatmap.Heatmap{}, err
	}

	q, err := s.Resolve(q)
	if err != nil {
		return heatmap.Heatmap{}, err
	}
	anchor, months := q.Anchor, q.Months

	windows, err := window.Generate(anchor, months)
	if err != nil {
		return heatmap.Heatmap{}, err
	}
	span, _ := window.Span(windows)

	snap, err := s.fetch(ctx, span)
	if err != nil {
		return heatmap.Heatmap{}, err
	}

	employees, perEmployee := s.join(ctx, snap, q.Filter)

	start := time.Now()
	h, err := heatmap.Build(ctx, employees, perEmployee, anchor, months, heatmap.WithConcurrency(s.concurrency))
	if err != nil {
		return heatmap.Heatmap{}, err
	}
	metrics.RecordAggregationLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordHeatmapBuilt(len(employees))
	metrics.RecordOvercommittedCells(h.Overcommitted())

	s.logger.Debug(ctx, "heatmap built",
		logger.String("anchor", anchor.String()),
		logger.Int("months", months),
		logger.Int("employees", len(employees)),
		logger.Int("allocations", len(snap.Allocations)),
	)
	return h, nil
}

// fetch reads employees, assignments and allocations. A local store reads
// them in one snapshot; separate collaborators are read concurrently and any
// failure fails the batch. Employees are read unfiltered so the join can tell
// a filtered-out employee from a missing one.
func (s *Service) fetch(ctx context.Context, span interval.Interval) (repository.Snapshot, error) {
	if s.snapshots != nil {
		snap, err := s.snapshots.Snapshot(ctx, &span)
		if err != nil {
			return repository.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
		}
		return snap, nil
	}

	var snap repository.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if snap.Employees, err = s.directory.ListEmployees(gctx, repository.EmployeeFilter{}); err != nil {
			return fmt.Errorf("list employees: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if snap.Assignments, err = s.reader.ListAssignments(gctx); err != nil {
			return fmt.Errorf("list assignments: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if snap.Allocations, err = s.reader.ListAllocations(gctx, &span); err != nil {
			return fmt.Errorf("list allocations: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return repository.Snapshot{}, err
	}
	return snap, nil
}

// join resolves every allocation to its employee through its assignment.
// Repeated employee ids keep their first record. Allocations whose
// assignment is unknown, assignments whose employee is unknown, and
// allocations with a reversed range or negative effort are dropped with a
// warning and counted.
func (s *Service) join(ctx context.Context, snap repository.Snapshot, filter repository.EmployeeFilter) ([]model.Employee, map[int64][]model.Allocation) {
	known := make(map[int64]bool, len(snap.Employees))
	wanted := make(map[int64]bool)
	var selected []model.Employee
	for _, e := range snap.Employees {
		if known[e.ID] {
			metrics.RecordRejectedRecord("duplicate_employee")
			s.logger.Warn(ctx, "dropping duplicate employee", logger.Int64("employeeID", e.ID))
			continue
		}
		known[e.ID] = true
		if filter.Match(e) {
			selected = append(selected, e)
			wanted[e.ID] = true
		}
	}

	owner := make(map[int64]int64, len(snap.Assignments))
	for _, a := range snap.Assignments {
		if !known[a.EmployeeID] {
			metrics.RecordDanglingReference("employee")
			s.logger.Warn(ctx, "dropping assignment of unknown employee",
				logger.Int64("assignmentID", a.ID),
				logger.Int64("employeeID", a.EmployeeID),
			)
			continue
		}
		owner[a.ID] = a.EmployeeID
	}

	perEmployee := make(map[int64][]model.Allocation, len(selected))
	for _, al := range snap.Allocations {
		if err := validAllocation(al); err != nil {
			metrics.RecordRejectedRecord("invalid_allocation")
			s.logger.Warn(ctx, "dropping invalid allocation",
				logger.Int64("allocationID", al.ID),
				logger.Int64("assignmentID", al.AssignmentID),
				logger.Error(err),
			)
			continue
		}
		employeeID, ok := owner[al.AssignmentID]
		if !ok {
			metrics.RecordDanglingReference("assignment")
			s.logger.Warn(ctx, "dropping allocation of unknown assignment",
				logger.Int64("allocationID", al.ID),
				logger.Int64("assignmentID", al.AssignmentID),
			)
			continue
		}
		if wanted[employeeID] {
			perEmployee[employeeID] = append(perEmployee[employeeID], al)
		}
	}
	return selected, perEmployee
}

func validAllocation(al model.Allocation) error {
	if err := al.Interval().Validate(); err != nil {
		return err
	}
	if al.EffortPercent < 0 {
		return fmt.Errorf("%w: %v", assignment.ErrNegativeEffort, al.EffortPercent)
	}
	return nil
}
