package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/okian/occupancy/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestAllocationJSON(t *testing.T) {
	convey.Convey("Given an allocation", t, func() {
		a := model.Allocation{
			ID:            7,
			AssignmentID:  3,
			StartDate:     civil.Date{Year: 2026, Month: time.April, Day: 1},
			EndDate:       civil.Date{Year: 2026, Month: time.April, Day: 15},
			EffortPercent: 50,
		}

		convey.Convey("When encoding it", func() {
			raw, err := json.Marshal(a)

			convey.Convey("Then dates are plain calendar days and names are snake case", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(raw), convey.ShouldEqual,
					`{"id":7,"assignment_id":3,"start_date":"2026-04-01","end_date":"2026-04-15","effort_percent":50}`)
			})
		})

		convey.Convey("When decoding a draft", func() {
			var d model.AllocationDraft
			err := json.Unmarshal([]byte(`{"start_date":"2024-02-28","end_date":"2024-03-01","effort_percent":80}`), &d)

			convey.Convey("Then its interval spans the leap day", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(d.Interval().Days(), convey.ShouldEqual, 3)
				convey.So(d.EffortPercent, convey.ShouldEqual, 80)
			})
		})

		convey.Convey("When decoding a malformed date", func() {
			var d model.AllocationDraft
			err := json.Unmarshal([]byte(`{"start_date":"2024-13-01"}`), &d)

			convey.Convey("Then decoding fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestProjectStatus(t *testing.T) {
	convey.Convey("Given project statuses", t, func() {
		convey.So(model.StatusContracted.Valid(), convey.ShouldBeTrue)
		convey.So(model.ProjectStatus("Dormant").Valid(), convey.ShouldBeFalse)
	})
}
