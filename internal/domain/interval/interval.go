// Package interval provides closed calendar date ranges and overlap math.
package interval

import (
	"fmt"

	"cloud.google.com/go/civil"
)

// Interval is a closed date range; both Start and End are included.
type Interval struct {
	Start civil.Date `json:"start_date"`
	End   civil.Date `json:"end_date"`
}

// New returns the interval [start, end].
// It fails with ErrInvalidInterval when start is after end.
func New(start, end civil.Date) (Interval, error) {
	iv := Interval{Start: start, End: end}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// Validate reports whether the interval is well formed.
func (iv Interval) Validate() error {
	if !iv.Start.IsValid() || !iv.End.IsValid() {
		return fmt.Errorf("%w: %s..%s is not a calendar date", ErrInvalidInterval, iv.Start, iv.End)
	}
	if iv.Start.After(iv.End) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidInterval, iv.Start, iv.End)
	}
	return nil
}

// Days returns the number of calendar days in the interval, or 0 for an
// invalid one.
func (iv Interval) Days() int {
	if iv.Validate() != nil {
		return 0
	}
	return iv.End.DaysSince(iv.Start) + 1
}

func (iv Interval) String() string {
	return iv.Start.String() + ".." + iv.End.String()
}

// Overlaps is the inclusive-overlap predicate: a.End >= b.Start && a.Start <= b.End.
// Store filters must use this and never an exact-match comparison.
func Overlaps(a, b Interval) bool {
	return !a.End.Before(b.Start) && !a.Start.After(b.End)
}

// OverlapDays returns how many calendar days are present in both a and b.
// The result is symmetric and 0 when the intervals are disjoint or either
// one is invalid.
func OverlapDays(a, b Interval) int {
	if a.Validate() != nil || b.Validate() != nil {
		return 0
	}
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	if start.After(end) {
		return 0
	}
	return end.DaysSince(start) + 1
}
