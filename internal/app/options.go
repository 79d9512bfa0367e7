package service

import (
	"time"

	"github.com/okian/occupancy/internal/adapters/repository"
	"github.com/okian/occupancy/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the local store. It also becomes the employee directory,
// assignment reader and writer unless those are set separately.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithDirectory sets where employees are read from.
func WithDirectory(d repository.EmployeeDirectory) Option {
	return func(s *Service) {
		s.directory = d
	}
}

// WithAssignmentReader sets where assignments and allocations are read from.
func WithAssignmentReader(r repository.AssignmentReader) Option {
	return func(s *Service) {
		s.reader = r
	}
}

// WithAssignmentWriter sets where assignments are written.
func WithAssignmentWriter(w repository.AssignmentWriter) Option {
	return func(s *Service) {
		s.writer = w
	}
}

// WithMonths sets the default heatmap width and its upper bound.
func WithMonths(defaultMonths, maxMonths int) Option {
	return func(s *Service) {
		if defaultMonths > 0 {
			s.defaultMonths = defaultMonths
		}
		if maxMonths >= s.defaultMonths {
			s.maxMonths = maxMonths
		}
	}
}

// WithConcurrency bounds per-employee aggregation goroutines.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithIdempotencySize sets how many creation keys are remembered.
func WithIdempotencySize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.idempotencySize = size
		}
	}
}

// WithClock replaces time.Now, used when a heatmap request has no anchor.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
