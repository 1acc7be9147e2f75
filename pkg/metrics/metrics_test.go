package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManager(t *testing.T) {
	Convey("Given a metrics manager on a fresh registry", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(
			WithPrometheusRegistry(registry),
			WithNamespace("test"),
			WithSubsystem("engine"),
			WithRefreshInterval(time.Second),
		)

		Convey("Then it should be constructed with the configured identity", func() {
			So(m, ShouldNotBeNil)
			So(m.namespace, ShouldEqual, "test")
			So(m.subsystem, ShouldEqual, "engine")
		})

		Convey("And the registry should expose the registered metrics", func() {
			families, err := registry.Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
		})
	})

	Convey("Given the global helpers", t, func() {
		Convey("When recording pipeline outcomes", func() {
			So(func() {
				RecordRatingSubmitted()
				RecordRatingApplied()
				RecordRatingRejected("cooldown_active")
				RecordRatingQuarantined()
				RecordRatingSuspicious()
				RecordRatingDuplicate()
				RecordAppliedDelta(0.042)
			}, ShouldNotPanic)
		})

		Convey("When recording adapter signals", func() {
			So(func() {
				RecordSentimentClassification("positive")
				RecordSentimentLatency(12.5)
				RecordSentimentCacheHit()
				RecordSentimentUnavailable()
				RecordCorrelationLookup("cluster")
				RecordCorrelationFeedError()
			}, ShouldNotPanic)
		})

		Convey("When recording decay, store, queue and worker signals", func() {
			So(func() {
				RecordDecaySettle(-0.3)
				RecordDecaySweep(17)
				RecordStoreCommitLatency(1.2)
				RecordStoreQueryLatency(0.4)
				RecordStoreError()
				UpdateTrackedEntities(3)
				UpdateQueueSize(10)
				UpdateQueueCapacity(100)
				UpdateQueueUtilization(0.1)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerCount(4)
				RecordWorkerProcessingLatency(3.3)
				RecordWorkerError()
				RecordHTTPRequest("ratings", "POST", "200")
				RecordHTTPRequestDuration("ratings", "POST", "200", 5.0)
				RecordErrorByComponent("store", "unavailable")
			}, ShouldNotPanic)
		})

		Convey("Then the custom registry should be reachable", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
