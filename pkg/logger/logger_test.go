package logger

import (
	"context"
	"log/slog"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given an initialized global logger", t, func() {
		err := Init()
		So(err, ShouldBeNil)

		Convey("When retrieving the global logger", func() {
			l := Get()

			Convey("Then it should not be nil", func() {
				So(l, ShouldNotBeNil)
			})

			Convey("And logging at each level should not panic", func() {
				ctx := context.Background()
				So(func() {
					l.Debug(ctx, "debug message", String("k", "v"))
					l.Info(ctx, "info message", Int("n", 1))
					l.Warn(ctx, "warn message", Float64("f", 1.5))
					l.Error(ctx, "error message", Any("x", struct{}{}))
				}, ShouldNotPanic)
			})
		})

		Convey("When creating a named logger", func() {
			l := Named("component")

			Convey("Then it should be distinct and usable", func() {
				So(l, ShouldNotBeNil)
				So(func() { l.Info(context.Background(), "named message") }, ShouldNotPanic)
			})
		})

		Convey("When setting the level from a string", func() {
			Convey("Then valid levels should be accepted", func() {
				So(SetLevelString("debug"), ShouldBeNil)
				So(SetLevelString("info"), ShouldBeNil)
				So(SetLevelString("WARN"), ShouldBeNil)
				So(SetLevelString("warning"), ShouldBeNil)
				So(SetLevelString("error"), ShouldBeNil)
				So(SetLevelString(""), ShouldBeNil)
			})

			Convey("And invalid levels should be rejected", func() {
				So(SetLevelString("verbose"), ShouldNotBeNil)
			})
		})

		Convey("When setting the level directly", func() {
			So(func() { SetLevel(slog.LevelWarn) }, ShouldNotPanic)
			So(SetLevelString("info"), ShouldBeNil)
		})

		Convey("When syncing", func() {
			So(Sync(), ShouldBeNil)
		})
	})
}
