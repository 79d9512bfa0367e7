// Package utilization prorates allocations into monthly windows.
//
// Aggregate is the single aggregation contract: it takes flat inputs only
// (allocations and windows) and never reaches into stores or object graphs.
// Results keep full float precision; rounding belongs to presentation.
package utilization

import (
	"github.com/okian/occupancy/internal/domain/interval"
	"github.com/okian/occupancy/internal/domain/model"
	"github.com/okian/occupancy/internal/domain/window"
)

// FullCapacity is the aggregate percent at which an employee is fully booked.
const FullCapacity = 100.0

// Point is the aggregate committed effort of one employee in one window.
type Point struct {
	EmployeeID int64   `json:"employee_id"`
	Label      string  `json:"label"`
	Percent    float64 `json:"percent"`
}

// Aggregate returns, for every window label, the sum over all allocations of
// effort * overlapDays / window.Days. Every window label is present in the
// result. Sums are not clamped: values above 100 signal overcommitment.
func Aggregate(allocations []model.Allocation, windows []window.MonthWindow) map[string]float64 {
	sums := make(map[string]float64, len(windows))
	for _, w := range windows {
		sums[w.Label()] = contribution(allocations, w)
	}
	return sums
}

// contribution sums effort-days of allocations within one window and divides
// by the window length once, so day-granular inputs keep exact halves.
func contribution(allocations []model.Allocation, w window.MonthWindow) float64 {
	if w.Days <= 0 {
		return 0
	}
	span := w.Interval()
	effortDays := 0.0
	for _, a := range allocations {
		days := interval.OverlapDays(a.Interval(), span)
		if days == 0 {
			continue
		}
		effortDays += a.EffortPercent * float64(days)
	}
	return effortDays / float64(w.Days)
}

// Points orders sums by windows for one employee. Labels missing from sums
// are reported as 0.
func Points(employeeID int64, windows []window.MonthWindow, sums map[string]float64) []Point {
	out := make([]Point, len(windows))
	for i, w := range windows {
		label := w.Label()
		out[i] = Point{EmployeeID: employeeID, Label: label, Percent: sums[label]}
	}
	return out
}

// Overcommitted returns the labels, in window order, whose aggregate exceeds
// full capacity.
func Overcommitted(windows []window.MonthWindow, sums map[string]float64) []string {
	var labels []string
	for _, w := range windows {
		if sums[w.Label()] > FullCapacity {
			labels = append(labels, w.Label())
		}
	}
	return labels
}
