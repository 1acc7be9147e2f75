package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoad(t *testing.T) {
	Convey("Given a clean environment", t, func() {
		os.Unsetenv("EQUILIBRATE_CONFIG")
		os.Unsetenv("EQUILIBRATE_ADDR")
		os.Unsetenv("EQUILIBRATE_BASE_CHANGE")

		Convey("When loading with no overrides", func() {
			cfg, err := Load(context.Background())

			Convey("Then defaults should apply", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":9090")
				So(cfg.BaseChange, ShouldEqual, 0.06)
			})
		})

		Convey("When overriding via environment variables", func() {
			os.Setenv("EQUILIBRATE_ADDR", ":7070")
			os.Setenv("EQUILIBRATE_BASE_CHANGE", "0.1")
			defer os.Unsetenv("EQUILIBRATE_ADDR")
			defer os.Unsetenv("EQUILIBRATE_BASE_CHANGE")

			cfg, err := Load(context.Background())

			Convey("Then the env values should win", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":7070")
				So(cfg.BaseChange, ShouldEqual, 0.1)
			})
		})

		Convey("When loading from a YAML file", func() {
			dir := t.TempDir()
			path := filepath.Join(dir, "equilibrate.yaml")
			yaml := "addr: \":6060\"\ncooldown_window: 24h\nsybil_quarantine_threshold: 0.9\n"
			So(os.WriteFile(path, []byte(yaml), 0o600), ShouldBeNil)
			os.Setenv("EQUILIBRATE_CONFIG", path)
			defer os.Unsetenv("EQUILIBRATE_CONFIG")

			cfg, err := Load(context.Background())

			Convey("Then the file values should apply", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":6060")
				So(cfg.CooldownWindow, ShouldEqual, 24*time.Hour)
				So(cfg.SybilQuarantineThreshold, ShouldEqual, 0.9)
			})
		})

		Convey("When the file path does not exist", func() {
			os.Setenv("EQUILIBRATE_CONFIG", "/nonexistent/equilibrate.yaml")
			defer os.Unsetenv("EQUILIBRATE_CONFIG")

			_, err := Load(context.Background())

			Convey("Then loading should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When an env override breaks an invariant", func() {
			os.Setenv("EQUILIBRATE_DIFFICULTY_EXPONENT", "0.2")
			defer os.Unsetenv("EQUILIBRATE_DIFFICULTY_EXPONENT")

			_, err := Load(context.Background())

			Convey("Then validation should reject it", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
