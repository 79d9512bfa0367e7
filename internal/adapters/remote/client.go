// Package remote reads employees, assignments and allocations from the
// resource and project services over HTTP.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/occupancy/internal/adapters/repository"
	"github.com/okian/occupancy/internal/domain/interval"
	"github.com/okian/occupancy/internal/domain/model"
	"github.com/okian/occupancy/pkg/logger"
	"github.com/okian/occupancy/pkg/metrics"
)

// Source names used in errors, logs and metrics.
const (
	SourceResource = "resource"
	SourceProject  = "project"
)

// RequestIDHeader carries the caller's request id to the collaborators.
const RequestIDHeader = "X-Request-ID"

const maxErrorBody = 512

// Client is a repository.EmployeeDirectory and repository.AssignmentReader
// backed by two HTTP services. It is read-only.
type Client struct {
	resourceURL string
	projectURL  string
	http        *http.Client
	timeout     time.Duration
	logger      logger.Logger
}

var (
	_ repository.EmployeeDirectory = (*Client)(nil)
	_ repository.AssignmentReader  = (*Client)(nil)
)

// New creates a Client for the given service base URLs.
func New(resourceURL, projectURL string, opts ...Option) *Client {
	c := &Client{
		resourceURL: strings.TrimRight(resourceURL, "/"),
		projectURL:  strings.TrimRight(projectURL, "/"),
		timeout:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}
	c.logger = c.logger.Named("remote")
	return c
}

// ListEmployees calls GET /employees on the resource service.
func (c *Client) ListEmployees(ctx context.Context, filter repository.EmployeeFilter) ([]model.Employee, error) {
	q := url.Values{}
	if filter.Query != "" {
		q.Set("q", filter.Query)
	}
	if filter.Role != "" {
		q.Set("role", filter.Role)
	}
	var out []model.Employee
	if err := c.get(ctx, SourceResource, c.resourceURL, "/employees", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAssignments calls GET /assignments on the project service.
func (c *Client) ListAssignments(ctx context.Context) ([]model.Assignment, error) {
	var out []model.Assignment
	if err := c.get(ctx, SourceProject, c.projectURL, "/assignments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAllocations calls GET /allocations on the project service. The range
// is sent as start_date/end_date and applied by the server.
func (c *Client) ListAllocations(ctx context.Context, rng *interval.Interval) ([]model.Allocation, error) {
	q := url.Values{}
	if rng != nil {
		q.Set("start_date", rng.Start.String())
		q.Set("end_date", rng.End.String())
	}
	var out []model.Allocation
	if err := c.get(ctx, SourceProject, c.projectURL, "/allocations", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, source, base, path string, query url.Values, into any) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordCollaboratorLatency(source, float64(time.Since(start).Microseconds())/1000)
		if err != nil {
			metrics.RecordCollaboratorError(source)
			c.logger.Warn(ctx, "collaborator call failed",
				logger.String("source", source),
				logger.String("path", path),
				logger.Error(err),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return unavailable(source, err)
	}
	req.Header.Set("Accept", "application/json")
	if id := logger.RequestID(ctx); id != "" {
		req.Header.Set(RequestIDHeader, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return unavailable(source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return unavailable(source, fmt.Errorf("%s %s: status %d: %s", req.Method, path, resp.StatusCode, strings.TrimSpace(string(body))))
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return unavailable(source, fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}

func unavailable(source string, err error) error {
	return fmt.Errorf("%s service: %w: %w", source, repository.ErrCollaboratorUnavailable, err)
}
