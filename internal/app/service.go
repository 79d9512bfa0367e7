// Package service provides the occupancy service that implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/occupancy/internal/adapters/repository"
	"github.com/okian/occupancy/internal/domain/dedupe"
	"github.com/okian/occupancy/internal/domain/interval"
	"github.com/okian/occupancy/internal/domain/model"
	"github.com/okian/occupancy/pkg/logger"
	"github.com/okian/occupancy/pkg/metrics"
)

// Service builds heatmaps and manages assignments.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	store     repository.Store
	directory repository.EmployeeDirectory
	reader    repository.AssignmentReader
	writer    repository.AssignmentWriter
	snapshots repository.SnapshotReader
	keeper    dedupe.Keeper

	// Configuration
	defaultMonths   int
	maxMonths       int
	concurrency     int
	idempotencySize int
	now             func() time.Time

	started bool

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		defaultMonths:   6,
		maxMonths:       24,
		concurrency:     runtime.NumCPU(),
		idempotencySize: 10_000,
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.maxMonths < s.defaultMonths {
		s.maxMonths = s.defaultMonths
	}

	return s
}

// Start resolves collaborators and makes the service ready.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	if s.store != nil {
		if s.directory == nil && s.reader == nil {
			s.snapshots = s.store
		}
		if s.directory == nil {
			s.directory = s.store
		}
		if s.reader == nil {
			s.reader = s.store
		}
		if s.writer == nil {
			s.writer = s.store
		}
	}
	switch {
	case s.directory == nil:
		return fmt.Errorf("%w: employee directory", ErrMissingCollaborator)
	case s.reader == nil:
		return fmt.Errorf("%w: assignment reader", ErrMissingCollaborator)
	case s.writer == nil:
		return fmt.Errorf("%w: assignment writer", ErrMissingCollaborator)
	}

	s.keeper = dedupe.NewInMemoryKeeper(dedupe.WithMaxSize(s.idempotencySize))
	s.started = true
	s.logger.Info(ctx, "occupancy service started",
		logger.Int("defaultMonths", s.defaultMonths),
		logger.Int("maxMonths", s.maxMonths),
		logger.Int("concurrency", s.concurrency),
		logger.Int("idempotencySize", s.idempotencySize),
	)
	return nil
}

// Stop releases the local store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error(context.Background(), "failed to close store", logger.Error(err))
		}
	}
	s.started = false
	s.logger.Info(context.Background(), "occupancy service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// ListEmployees returns employees matching filter.
func (s *Service) ListEmployees(ctx context.Context, filter repository.EmployeeFilter) ([]model.Employee, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.directory.ListEmployees(ctx, filter)
}

// ListAssignments returns every assignment with its derived span.
func (s *Service) ListAssignments(ctx context.Context) ([]model.Assignment, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.reader.ListAssignments(ctx)
}

// ListAllocations returns allocations overlapping rng, or all when rng is nil.
func (s *Service) ListAllocations(ctx context.Context, rng *interval.Interval) ([]model.Allocation, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if rng != nil {
		if err := rng.Validate(); err != nil {
			return nil, err
		}
	}
	return s.reader.ListAllocations(ctx, rng)
}

// CreateEmployee adds an employee to the local store.
func (s *Service) CreateEmployee(ctx context.Context, e model.Employee) (model.Employee, error) {
	if err := s.local(); err != nil {
		return model.Employee{}, err
	}
	return s.store.CreateEmployee(ctx, e)
}

// CreateCustomer adds a customer to the local store.
func (s *Service) CreateCustomer(ctx context.Context, c model.Customer) (model.Customer, error) {
	if err := s.local(); err != nil {
		return model.Customer{}, err
	}
	return s.store.CreateCustomer(ctx, c)
}

// CreateProject adds a project to the local store.
func (s *Service) CreateProject(ctx context.Context, p model.Project) (model.Project, error) {
	if err := s.local(); err != nil {
		return model.Project{}, err
	}
	if err := validateProject(p); err != nil {
		return model.Project{}, err
	}
	return s.store.CreateProject(ctx, p)
}

func validateProject(p model.Project) error {
	if p.Status != "" && !p.Status.Valid() {
		return fmt.Errorf("%w: %q", model.ErrInvalidStatus, p.Status)
	}
	if p.StartDate.IsValid() || p.EndDate.IsValid() {
		if err := (interval.Interval{Start: p.StartDate, End: p.EndDate}).Validate(); err != nil {
			return fmt.Errorf("project dates: %w", err)
		}
	}
	return nil
}

// UpdateProject replaces a project in the local store.
func (s *Service) UpdateProject(ctx context.Context, p model.Project) (model.Project, error) {
	if err := s.local(); err != nil {
		return model.Project{}, err
	}
	if err := validateProject(p); err != nil {
		return model.Project{}, err
	}
	return s.store.UpdateProject(ctx, p)
}

// GetProject reads a project from the local store.
func (s *Service) GetProject(ctx context.Context, id int64) (model.Project, error) {
	if err := s.local(); err != nil {
		return model.Project{}, err
	}
	return s.store.GetProject(ctx, id)
}

func (s *Service) local() error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.store == nil {
		return ErrLocalStoreRequired
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"defaultMonths": s.defaultMonths,
		"maxMonths":     s.maxMonths,
		"concurrency":   s.concurrency,
	}

	if s.started {
		stats["idempotencyKeys"] = s.keeper.Size()
		if s.store != nil {
			counts := s.store.Count(context.Background())
			stats["employees"] = counts.Employees
			stats["assignments"] = counts.Assignments
			stats["allocations"] = counts.Allocations
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	metrics.UpdateSystemMemoryUsage(mem.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	return stats
}
