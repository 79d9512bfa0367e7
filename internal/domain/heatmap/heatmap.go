// Package heatmap assembles per-employee utilization into an aligned table.
package heatmap

import (
	"context"
	"math"
	"runtime"

	"cloud.google.com/go/civil"
	"github.com/okian/occupancy/internal/domain/model"
	"github.com/okian/occupancy/internal/domain/utilization"
	"github.com/okian/occupancy/internal/domain/window"
	"golang.org/x/sync/errgroup"
)

// Cell is one rounded value of a row.
type Cell struct {
	Label   string `json:"label"`
	Percent int    `json:"percent"`
}

// Row is the presentation shape of one employee's heatmap line.
type Row struct {
	Employee model.Employee `json:"employee"`
	Cells    []Cell         `json:"cells"`
}

// Heatmap holds headers shared by every row and the rounded rows keyed by
// employee id. Rows[id][i] belongs to Headers[i].
type Heatmap struct {
	Headers []string
	Rows    map[int64][]int

	// Exact keeps the unrounded sums for consumers that need precision.
	Exact map[int64][]float64

	// Over lists, per employee, the labels above full capacity.
	Over map[int64][]string

	employees []model.Employee
}

// Ordered returns rows in the order employees were passed to Build.
func (h Heatmap) Ordered() []Row {
	out := make([]Row, 0, len(h.employees))
	for _, e := range h.employees {
		values := h.Rows[e.ID]
		cells := make([]Cell, len(h.Headers))
		for i, label := range h.Headers {
			cells[i] = Cell{Label: label, Percent: values[i]}
		}
		out = append(out, Row{Employee: e, Cells: cells})
	}
	return out
}

// Overcommitted returns the number of cells whose unrounded value exceeds
// full capacity.
func (h Heatmap) Overcommitted() int {
	n := 0
	for _, labels := range h.Over {
		n += len(labels)
	}
	return n
}

// Option applies a configuration option to Build.
type Option func(*builder)

type builder struct {
	concurrency int
}

// WithConcurrency bounds how many employees are aggregated at once.
func WithConcurrency(n int) Option {
	return func(b *builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// Build computes the heatmap for employees over monthCount windows starting
// at the month of anchor. Headers are derived from the anchor alone, so an
// empty employee list still yields monthCount headers, and an employee with
// no allocations gets a row of zeros. Employees are aggregated concurrently;
// each reads only its own slice of perEmployee.
func Build(ctx context.Context, employees []model.Employee, perEmployee map[int64][]model.Allocation, anchor civil.Date, monthCount int, opts ...Option) (Heatmap, error) {
	b := builder{concurrency: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&b)
	}

	windows, err := window.Generate(anchor, monthCount)
	if err != nil {
		return Heatmap{}, err
	}

	headers := window.Labels(windows)
	exact := make([][]float64, len(employees))
	over := make([][]string, len(employees))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, e := range employees {
		i, e := i, e
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sums := utilization.Aggregate(perEmployee[e.ID], windows)
			row := make([]float64, len(windows))
			for j, p := range utilization.Points(e.ID, windows, sums) {
				row[j] = p.Percent
			}
			exact[i] = row
			over[i] = utilization.Overcommitted(windows, sums)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Heatmap{}, err
	}

	h := Heatmap{
		Headers:   headers,
		Rows:      make(map[int64][]int, len(employees)),
		Exact:     make(map[int64][]float64, len(employees)),
		Over:      make(map[int64][]string),
		employees: employees,
	}
	for i, e := range employees {
		h.Exact[e.ID] = exact[i]
		if len(over[i]) > 0 {
			h.Over[e.ID] = over[i]
		}
		rounded := make([]int, len(exact[i]))
		for j, v := range exact[i] {
			rounded[j] = RoundHalfUp(v)
		}
		h.Rows[e.ID] = rounded
	}
	return h, nil
}

// roundingScale snaps values to 1e-9 before rounding so float noise just
// below a half still rounds up.
const roundingScale = 1e9

// RoundHalfUp rounds to the nearest integer with halves going up.
func RoundHalfUp(v float64) int {
	return int(math.Floor(math.Round(v*roundingScale)/roundingScale + 0.5))
}
