package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/trustfabric/equilibrate/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new in-memory deduper", t, func() {
		ctx := context.Background()

		Convey("When recording a new event id", func() {
			d := dedupe.NewInMemoryDeduper()
			seen := d.SeenAndRecord(ctx, "evt-1")

			Convey("Then it should be newly recorded", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And recording it again should report it as seen", func() {
				So(d.SeenAndRecord(ctx, "evt-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When unrecording after a failed commit", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(ctx, "evt-1")
			d.Unrecord(ctx, "evt-1")

			Convey("Then the same id can be retried exactly once more", func() {
				So(d.SeenAndRecord(ctx, "evt-1"), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, "evt-1"), ShouldBeTrue)
			})
		})

		Convey("When the bounded deduper overflows", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for i := 0; i < 5; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("evt-%d", i))
			}

			Convey("Then the oldest ids should have been evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "evt-4"), ShouldBeTrue)
			})
		})

		Convey("When accessed concurrently", func() {
			d := dedupe.NewInMemoryDeduper()
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func(n int) {
					defer wg.Done()
					for j := 0; j < 100; j++ {
						d.SeenAndRecord(ctx, fmt.Sprintf("evt-%d-%d", n, j))
					}
				}(i)
			}
			wg.Wait()

			Convey("Then all distinct ids should be recorded", func() {
				So(d.Size(), ShouldEqual, 1000)
			})
		})
	})
}
