// Package window generates consecutive calendar-month reporting windows.
package window

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/okian/occupancy/internal/domain/interval"
)

// labelLayout keeps labels sortable as plain strings.
const labelLayout = "2006-01"

// MonthWindow is one calendar month with its day count.
type MonthWindow struct {
	Year  int
	Month time.Month
	First civil.Date
	Last  civil.Date
	Days  int
}

// Label returns the stable YYYY-MM key of the window.
func (w MonthWindow) Label() string {
	return fmt.Sprintf("%04d-%02d", w.Year, int(w.Month))
}

// Interval returns [First, Last].
func (w MonthWindow) Interval() interval.Interval {
	return interval.Interval{Start: w.First, End: w.Last}
}

// DaysIn returns the number of days in the given month, leap-year aware.
func DaysIn(year int, month time.Month) int {
	// Day 0 of the following month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Of returns the window for the month containing d.
func Of(d civil.Date) MonthWindow {
	days := DaysIn(d.Year, d.Month)
	return MonthWindow{
		Year:  d.Year,
		Month: d.Month,
		First: civil.Date{Year: d.Year, Month: d.Month, Day: 1},
		Last:  civil.Date{Year: d.Year, Month: d.Month, Day: days},
		Days:  days,
	}
}

// Generate returns count consecutive month windows starting with the month
// that contains anchor. Every call starts again from the anchor.
func Generate(anchor civil.Date, count int) ([]MonthWindow, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindowCount, count)
	}
	if !anchor.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAnchor, anchor)
	}

	out := make([]MonthWindow, 0, count)
	year, month := anchor.Year, anchor.Month
	for i := 0; i < count; i++ {
		out = append(out, Of(civil.Date{Year: year, Month: month, Day: 1}))
		if month == time.December {
			year, month = year+1, time.January
		} else {
			month++
		}
	}
	return out, nil
}

// Labels returns the labels of windows in order.
func Labels(windows []MonthWindow) []string {
	labels := make([]string, len(windows))
	for i, w := range windows {
		labels[i] = w.Label()
	}
	return labels
}

// Span returns the interval from the first day of the first window to the
// last day of the last window. ok is false for an empty slice.
func Span(windows []MonthWindow) (iv interval.Interval, ok bool) {
	if len(windows) == 0 {
		return interval.Interval{}, false
	}
	return interval.Interval{Start: windows[0].First, End: windows[len(windows)-1].Last}, true
}

// ParseLabel parses a YYYY-MM label back into its window.
func ParseLabel(label string) (MonthWindow, error) {
	t, err := time.Parse(labelLayout, label)
	if err != nil {
		return MonthWindow{}, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	return Of(civil.DateOf(t)), nil
}
