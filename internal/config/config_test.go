package config

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNew(t *testing.T) {
	Convey("Given default configuration", t, func() {
		c := New()

		Convey("Then the score range should be the documented one", func() {
			So(c.MinScore, ShouldEqual, 0.0)
			So(c.MaxScore, ShouldEqual, 5.0)
			So(c.NeutralScore, ShouldEqual, 2.5)
		})

		Convey("Then the anti-gaming knobs should be sane", func() {
			So(c.CooldownWindow, ShouldEqual, 7*24*time.Hour)
			So(c.DiversityFloor, ShouldBeBetweenOrEqual, 0, 1)
			So(c.SybilSuspiciousThreshold, ShouldBeLessThan, c.SybilQuarantineThreshold)
			So(c.SuspiciousDampening, ShouldBeBetween, 0, 1)
		})

		Convey("Then decay and difficulty should follow the deployment defaults", func() {
			So(c.DecayHalfLife, ShouldEqual, 90*24*time.Hour)
			So(c.DifficultyExponent, ShouldBeGreaterThanOrEqualTo, 1)
			So(c.BaseChange, ShouldBeGreaterThan, 0)
		})

		Convey("Then it should pass its own validation", func() {
			So(c.validate(), ShouldBeNil)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given a default config", t, func() {
		Convey("When the score range is inverted", func() {
			c := New()
			c.MaxScore = c.MinScore

			Convey("Then validation should fail", func() {
				So(c.validate(), ShouldNotBeNil)
			})
		})

		Convey("When the neutral baseline falls outside the range", func() {
			c := New()
			c.NeutralScore = c.MaxScore + 1

			Convey("Then validation should fail", func() {
				So(c.validate(), ShouldNotBeNil)
			})
		})

		Convey("When the difficulty exponent is below one", func() {
			c := New()
			c.DifficultyExponent = 0.5

			Convey("Then validation should fail", func() {
				So(c.validate(), ShouldNotBeNil)
			})
		})

		Convey("When the sybil thresholds are not ordered", func() {
			c := New()
			c.SybilSuspiciousThreshold = c.SybilQuarantineThreshold

			Convey("Then validation should fail", func() {
				So(c.validate(), ShouldNotBeNil)
			})
		})

		Convey("When the address is empty", func() {
			c := New()
			c.Addr = ""

			Convey("Then validation should fail", func() {
				So(c.validate(), ShouldNotBeNil)
			})
		})
	})
}
