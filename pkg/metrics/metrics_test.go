package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

func family(reg *prometheus.Registry, name string) *dto.MetricFamily {
	mfs, err := reg.Gather()
	So(err, ShouldBeNil)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then metrics use the occupancy namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.heatmapsBuilt.Inc()
				mf := family(registry, "occupancy_heatmap_heatmaps_built_total")
				So(mf, ShouldNotBeNil)
				So(mf.GetMetric()[0].GetCounter().GetValue(), ShouldEqual, 1)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.aggregationLatency.Observe(0.3)

			Convey("Then names, buckets and labels follow the options", func() {
				mf := family(registry, "test_unit_aggregation_latency_milliseconds")
				So(mf, ShouldNotBeNil)
				m := mf.GetMetric()[0]
				So(m.GetHistogram().GetBucket(), ShouldHaveLength, 3)
				So(m.GetLabel()[0].GetName(), ShouldEqual, "env")
				So(m.GetLabel()[0].GetValue(), ShouldEqual, "test")
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics", t, func() {
		Convey("When recording heatmap metrics", func() {
			So(func() {
				RecordHeatmapBuilt(12)
				RecordAggregationLatency(3.5)
				RecordOvercommittedCells(2)
				RecordOvercommittedCells(0)
				RecordDanglingReference("assignment")
				RecordRejectedRecord("invalid_allocation")
			}, ShouldNotPanic)

			Convey("Then the row gauge holds the last value", func() {
				mf := family(GetRegistry(), "occupancy_heatmap_heatmap_rows")
				So(mf, ShouldNotBeNil)
				So(mf.GetMetric()[0].GetGauge().GetValue(), ShouldEqual, 12)
			})

			Convey("And rejected records are labelled by reason", func() {
				mf := family(GetRegistry(), "occupancy_heatmap_rejected_records_total")
				So(mf, ShouldNotBeNil)
				So(mf.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "invalid_allocation")
			})
		})

		Convey("When recording assignment metrics", func() {
			So(func() {
				RecordAssignmentCreated()
				RecordAssignmentDeleted()
				RecordValidationError("invalid_interval")
				RecordIdempotentReplay()
				RecordDegradedResponse()
			}, ShouldNotPanic)
		})

		Convey("When recording collaborator metrics", func() {
			So(func() {
				RecordCollaboratorError("resource")
				RecordCollaboratorLatency("project", 12)
				RecordRepositoryQueryLatency("allocations", 0.4)
			}, ShouldNotPanic)

			Convey("Then errors are labelled by source", func() {
				mf := family(GetRegistry(), "occupancy_heatmap_collaborator_errors_total")
				So(mf, ShouldNotBeNil)
				So(mf.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "resource")
			})
		})

		Convey("When recording HTTP and system metrics", func() {
			So(func() {
				RecordHTTPRequest("/heatmap", "GET", "200")
				RecordHTTPRequestDuration("/heatmap", "GET", "200", 5.0)
				RecordErrorByType("not_found", "warning")
				RecordErrorByEndpoint("/assignments/{assignmentID}", "DELETE", "not_found")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(8)
				RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)
		})
	})
}
