package decay_test

import (
	"testing"
	"time"

	"github.com/trustfabric/equilibrate/internal/domain/decay"
	"github.com/trustfabric/equilibrate/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSettle(t *testing.T) {
	Convey("Given an engine with baseline 2.5 and a 90 day half-life", t, func() {
		e := decay.New(
			decay.WithBaseline(2.5),
			decay.WithHalfLife(90*24*time.Hour),
		)
		t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		Convey("When no time has elapsed", func() {
			rec := model.TrustRecord{EntityID: "a", Score: 4.0, LastDecay: t0}
			score, at := e.Settle(rec, t0)

			Convey("Then the score and timestamp should be unchanged", func() {
				So(score, ShouldEqual, 4.0)
				So(at, ShouldEqual, t0)
			})

			Convey("And settling again should be idempotent", func() {
				score2, at2 := e.Settle(rec, t0)
				So(score2, ShouldEqual, score)
				So(at2, ShouldEqual, at)
			})
		})

		Convey("When exactly one half-life has elapsed", func() {
			rec := model.TrustRecord{EntityID: "a", Score: 4.5, LastDecay: t0}
			score, at := e.Settle(rec, t0.Add(90*24*time.Hour))

			Convey("Then half the distance to the baseline should be closed", func() {
				So(score, ShouldAlmostEqual, 3.5, 1e-9)
				So(at, ShouldEqual, t0.Add(90*24*time.Hour))
			})
		})

		Convey("When the score sits below the baseline", func() {
			rec := model.TrustRecord{EntityID: "a", Score: 0.5, LastDecay: t0}
			score, _ := e.Settle(rec, t0.Add(90*24*time.Hour))

			Convey("Then decay should pull it upward toward neutral", func() {
				So(score, ShouldAlmostEqual, 1.5, 1e-9)
			})
		})

		Convey("When the score sits exactly at the baseline", func() {
			rec := model.TrustRecord{EntityID: "a", Score: 2.5, LastDecay: t0}
			score, _ := e.Settle(rec, t0.Add(365*24*time.Hour))

			Convey("Then nothing should move", func() {
				So(score, ShouldEqual, 2.5)
			})
		})

		Convey("When now precedes the last settlement", func() {
			rec := model.TrustRecord{EntityID: "a", Score: 4.0, LastDecay: t0}
			score, at := e.Settle(rec, t0.Add(-time.Hour))

			Convey("Then the settlement timestamp must not move backward", func() {
				So(score, ShouldEqual, 4.0)
				So(at, ShouldEqual, t0)
			})
		})

		Convey("When a very long time has elapsed", func() {
			rec := model.TrustRecord{EntityID: "a", Score: 5.0, LastDecay: t0}
			score, _ := e.Settle(rec, t0.Add(100*365*24*time.Hour))

			Convey("Then the score should converge on the baseline", func() {
				So(score, ShouldAlmostEqual, 2.5, 1e-6)
			})
		})
	})
}
