package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "reviewlens")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithHistogramBuckets([]float64{1, 10}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options should be applied", func() {
				So(manager.namespace, ShouldEqual, "test_namespace")
				So(manager.subsystem, ShouldEqual, "test_subsystem")
				So(manager.histogramBuckets, ShouldResemble, []float64{1, 10})
			})

			Convey("And collectors should be registered on the given registry", func() {
				manager.mismatchesTotal.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When passing empty option values", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults should be kept", func() {
				So(manager.namespace, ShouldEqual, "reviewlens")
				So(manager.subsystem, ShouldEqual, "sentiment")
				So(len(manager.histogramBuckets), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording analyses", func() {
			before := testutil.ToFloat64(globalManager.analysesTotal.WithLabelValues("Positive"))
			RecordAnalysis("Positive")
			after := testutil.ToFloat64(globalManager.analysesTotal.WithLabelValues("Positive"))

			Convey("Then the labelled counter should increase", func() {
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When updating gauges", func() {
			UpdateQueueSize(7)
			UpdateQueueCapacity(64)
			UpdateStoreRecords(12)

			Convey("Then the gauges should hold the values", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 64)
				So(testutil.ToFloat64(globalManager.storeRecords), ShouldEqual, 12)
			})
		})

		Convey("When recording the remaining collectors", func() {
			Convey("Then none of them should panic", func() {
				So(func() {
					RecordMismatch()
					RecordInferenceLatency(3.2)
					RecordAnalysisLatency(4.1)
					SetModelLoadSeconds(0.25)
					RecordStoreAppendLatency(1.5)
					RecordQueueRejected()
					RecordError("store", "write")
					RecordHTTPRequest("analyze", "POST", "200")
					RecordHTTPRequestDuration("analyze", "POST", "200", 12)
					UpdateSystemMemoryUsage(1 << 20)
					UpdateSystemGoroutineCount(10)
					RecordSystemGCPauseTime(0.3)
				}, ShouldNotPanic)
			})
		})

		Convey("When gathering from the custom registry", func() {
			RecordMismatch()
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)

			names := make([]string, 0, len(families))
			for _, f := range families {
				names = append(names, f.GetName())
			}

			Convey("Then service metrics should be exposed", func() {
				So(strings.Join(names, ","), ShouldContainSubstring, "reviewlens_sentiment_rating_mismatches_total")
			})
		})
	})
}
