package window_test

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/okian/occupancy/internal/domain/window"
	. "github.com/smartystreets/goconvey/convey"
)

// realDays counts the days of the twelve months starting at (y, m) by
// walking the calendar one day at a time.
func realDays(y int, m time.Month, months int) int {
	start := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, months, 0)
	n := 0
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		n++
	}
	return n
}

func TestGenerate(t *testing.T) {
	Convey("Given an anchor in the middle of a month", t, func() {
		anchor := civil.Date{Year: 2026, Month: time.November, Day: 18}

		Convey("When generating four windows", func() {
			ws, err := window.Generate(anchor, 4)

			Convey("Then they start at the anchor month and roll over the year", func() {
				So(err, ShouldBeNil)
				So(window.Labels(ws), ShouldResemble, []string{"2026-11", "2026-12", "2027-01", "2027-02"})
				So(ws[0].First, ShouldResemble, civil.Date{Year: 2026, Month: time.November, Day: 1})
				So(ws[0].Last, ShouldResemble, civil.Date{Year: 2026, Month: time.November, Day: 30})
				So(ws[1].Days, ShouldEqual, 31)
				So(ws[3].Days, ShouldEqual, 28)
			})

			Convey("And a second call yields the same sequence", func() {
				again, err := window.Generate(anchor, 4)
				So(err, ShouldBeNil)
				So(again, ShouldResemble, ws)
			})
		})

		Convey("When the count is not positive", func() {
			_, errZero := window.Generate(anchor, 0)
			_, errNeg := window.Generate(anchor, -3)

			Convey("Then it fails with ErrInvalidWindowCount", func() {
				So(errors.Is(errZero, window.ErrInvalidWindowCount), ShouldBeTrue)
				So(errors.Is(errNeg, window.ErrInvalidWindowCount), ShouldBeTrue)
			})
		})
	})

	Convey("Given twelve windows", t, func() {
		anchors := []civil.Date{
			{Year: 2024, Month: time.February, Day: 29},
			{Year: 2025, Month: time.February, Day: 10},
			{Year: 2026, Month: time.April, Day: 1},
			{Year: 2099, Month: time.December, Day: 31},
		}

		for _, a := range anchors {
			Convey("When anchored at "+a.String(), func() {
				ws, err := window.Generate(a, 12)
				So(err, ShouldBeNil)

				Convey("Then the day counts sum to the real calendar", func() {
					total := 0
					for _, w := range ws {
						total += w.Days
					}
					So(total, ShouldEqual, realDays(a.Year, a.Month, 12))
				})

				Convey("And labels strictly increase", func() {
					labels := window.Labels(ws)
					for i := 1; i < len(labels); i++ {
						So(labels[i], ShouldBeGreaterThan, labels[i-1])
					}
				})
			})
		}
	})

	Convey("Given February", t, func() {
		Convey("Then leap years have 29 days", func() {
			So(window.DaysIn(2024, time.February), ShouldEqual, 29)
			So(window.DaysIn(2000, time.February), ShouldEqual, 29)
		})

		Convey("And other years have 28", func() {
			So(window.DaysIn(2025, time.February), ShouldEqual, 28)
			So(window.DaysIn(1900, time.February), ShouldEqual, 28)
		})
	})
}

func TestSpanAndLabel(t *testing.T) {
	Convey("Given generated windows", t, func() {
		ws, err := window.Generate(civil.Date{Year: 2026, Month: time.April, Day: 9}, 3)
		So(err, ShouldBeNil)

		Convey("Then the span covers first through last day", func() {
			span, ok := window.Span(ws)
			So(ok, ShouldBeTrue)
			So(span.Start.String(), ShouldEqual, "2026-04-01")
			So(span.End.String(), ShouldEqual, "2026-06-30")
			So(span.Days(), ShouldEqual, 91)
		})

		Convey("And an empty slice has no span", func() {
			_, ok := window.Span(nil)
			So(ok, ShouldBeFalse)
		})

		Convey("And labels parse back to the same window", func() {
			w, err := window.ParseLabel("2024-02")
			So(err, ShouldBeNil)
			So(w.Days, ShouldEqual, 29)

			_, err = window.ParseLabel("2024/02")
			So(errors.Is(err, window.ErrInvalidLabel), ShouldBeTrue)
		})
	})
}
