package engine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/trustfabric/equilibrate/internal/adapters/repository"
	"github.com/trustfabric/equilibrate/internal/domain/model"
	"github.com/trustfabric/equilibrate/internal/engine"
	"github.com/trustfabric/equilibrate/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// stubFeed maps every rater to one fixed cluster.
type stubFeed struct {
	cluster string
}

func (f stubFeed) ClusterOf(context.Context, string) (string, error) {
	return f.cluster, nil
}

// flakyStore fails CommitRating a fixed number of times, then delegates.
type flakyStore struct {
	repository.Store
	failures int
}

func (s *flakyStore) CommitRating(ctx context.Context, c repository.RatingCommit) (model.TrustRecord, error) {
	if s.failures > 0 {
		s.failures--
		return model.TrustRecord{}, fmt.Errorf("%w: connection reset", repository.ErrUnavailable)
	}
	return s.Store.CommitRating(ctx, c)
}

func rating(eventID, raterID, targetID string, stars int) model.RatingEvent {
	return model.RatingEvent{
		EventID:     eventID,
		RaterID:     raterID,
		TargetID:    targetID,
		Stars:       stars,
		SubmittedAt: time.Now(),
	}
}

func TestCoordinatorValidation(t *testing.T) {
	ctx := context.Background()

	Convey("Given a coordinator over an empty store", t, func() {
		store := repository.NewMemStore()
		coord := engine.New(store)

		Convey("A rating outside the star range is rejected", func() {
			res, err := coord.Process(ctx, rating("ev-1", "bob", "alice", 0))
			So(err, ShouldBeNil)
			So(res.Event.State, ShouldEqual, model.StateRejected)
			So(res.Reason, ShouldEqual, engine.ReasonInvalidStars)

			res, err = coord.Process(ctx, rating("ev-2", "bob", "alice", 6))
			So(err, ShouldBeNil)
			So(res.Reason, ShouldEqual, engine.ReasonInvalidStars)
		})

		Convey("A self-rating is rejected", func() {
			res, err := coord.Process(ctx, rating("ev-1", "bob", "bob", 5))
			So(err, ShouldBeNil)
			So(res.Event.State, ShouldEqual, model.StateRejected)
			So(res.Reason, ShouldEqual, engine.ReasonSelfRating)
		})

		Convey("Missing ids are rejected", func() {
			res, err := coord.Process(ctx, rating("", "bob", "alice", 5))
			So(err, ShouldBeNil)
			So(res.Reason, ShouldEqual, engine.ReasonMissingField)

			res, err = coord.Process(ctx, rating("ev-1", "", "alice", 5))
			So(err, ShouldBeNil)
			So(res.Reason, ShouldEqual, engine.ReasonMissingField)
		})

		Convey("Rejected events leave no trust records behind", func() {
			_, err := coord.Process(ctx, rating("ev-1", "bob", "bob", 5))
			So(err, ShouldBeNil)
			So(store.Count(ctx), ShouldEqual, 0)
		})
	})
}

func TestCoordinatorApply(t *testing.T) {
	ctx := context.Background()

	Convey("Given a coordinator with a fixed clock", t, func() {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		store := repository.NewMemStore()
		coord := engine.New(store, engine.WithNow(func() time.Time { return now }))

		Convey("A clean five-star rating applies a small positive delta", func() {
			res, err := coord.Process(ctx, rating("ev-1", "bob", "alice", 5))
			So(err, ShouldBeNil)
			So(res.Event.State, ShouldEqual, model.StateApplied)
			So(res.Event.Verdict, ShouldEqual, model.VerdictClean)
			So(res.Event.Delta, ShouldBeGreaterThan, 0)
			So(res.Event.Delta, ShouldBeLessThan, 0.06)
			So(res.Record.Score, ShouldBeGreaterThan, 2.5)
			So(res.Record.EventCount, ShouldEqual, 1)
			So(res.Record.PositiveCount, ShouldEqual, 1)

			Convey("and both rater and target now have records", func() {
				So(store.Count(ctx), ShouldEqual, 2)
			})

			Convey("and the event shows up in the target's history", func() {
				h, err := store.History(ctx, "alice", 10)
				So(err, ShouldBeNil)
				So(h, ShouldHaveLength, 1)
				So(h[0].EventID, ShouldEqual, "ev-1")
				So(h[0].OldScore, ShouldEqual, 2.5)
				So(h[0].NewScore, ShouldEqual, res.Record.Score)
			})
		})

		Convey("A one-star rating moves the score down faster than a five-star moves it up", func() {
			up, err := coord.Process(ctx, rating("ev-up", "bob", "alice", 5))
			So(err, ShouldBeNil)
			down, err := coord.Process(ctx, rating("ev-down", "carol", "dave", 1))
			So(err, ShouldBeNil)

			// Negative deltas skip difficulty scaling.
			So(down.Event.Delta, ShouldBeLessThan, 0)
			So(-down.Event.Delta, ShouldBeGreaterThan, up.Event.Delta)
		})

		Convey("A three-star rating is neutral", func() {
			res, err := coord.Process(ctx, rating("ev-1", "bob", "alice", 3))
			So(err, ShouldBeNil)
			So(res.Event.State, ShouldEqual, model.StateApplied)
			So(res.Event.Delta, ShouldEqual, 0)
			So(res.Record.Score, ShouldEqual, 2.5)
		})

		Convey("The score never leaves the configured range", func() {
			_, err := store.Ensure(ctx, "alice", now)
			So(err, ShouldBeNil)
			_, err = store.SettleDecay(ctx, "alice", 0.005, now, 1)
			So(err, ShouldBeNil)

			res, err := coord.Process(ctx, rating("ev-1", "bob", "alice", 1))
			So(err, ShouldBeNil)
			So(res.Event.State, ShouldEqual, model.StateApplied)
			So(res.Record.Score, ShouldEqual, 0)
			So(res.Event.Delta, ShouldAlmostEqual, -0.005, 1e-9)
		})
	})
}

func TestCoordinatorIdempotency(t *testing.T) {
	ctx := context.Background()

	Convey("Given a coordinator", t, func() {
		store := repository.NewMemStore()
		coord := engine.New(store)

		Convey("Resubmitting an applied event id is rejected as a duplicate", func() {
			first, err := coord.Process(ctx, rating("ev-1", "bob", "alice", 5))
			So(err, ShouldBeNil)
			So(first.Event.State, ShouldEqual, model.StateApplied)

			second, err := coord.Process(ctx, rating("ev-1", "bob", "alice", 5))
			So(err, ShouldBeNil)
			So(second.Event.State, ShouldEqual, model.StateRejected)
			So(second.Reason, ShouldEqual, engine.ReasonDuplicate)

			rec, err := store.Get(ctx, "alice")
			So(err, ShouldBeNil)
			So(rec.Score, ShouldEqual, first.Record.Score)
			So(rec.EventCount, ShouldEqual, 1)
		})
	})

	Convey("Given a store that fails its first commit", t, func() {
		flaky := &flakyStore{Store: repository.NewMemStore(), failures: 1}
		coord := engine.New(flaky)

		Convey("The failed event can be retried with the same event id", func() {
			_, err := coord.Process(ctx, rating("ev-1", "bob", "alice", 5))
			So(err, ShouldNotBeNil)
			So(errors.Is(err, engine.ErrStoreFailure), ShouldBeTrue)

			res, err := coord.Process(ctx, rating("ev-1", "bob", "alice", 5))
			So(err, ShouldBeNil)
			So(res.Event.State, ShouldEqual, model.StateApplied)
		})
	})
}

func TestCoordinatorCooldown(t *testing.T) {
	ctx := context.Background()

	Convey("Given a coordinator with a fixed clock", t, func() {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		store := repository.NewMemStore()
		coord := engine.New(store, engine.WithNow(func() time.Time { return now }))

		first, err := coord.Process(ctx, rating("ev-1", "bob", "alice", 5))
		So(err, ShouldBeNil)
		So(first.Event.State, ShouldEqual, model.StateApplied)

		Convey("A second rating for the same pair inside the window is rejected", func() {
			res, err := coord.Process(ctx, rating("ev-2", "bob", "alice", 5))
			So(err, ShouldBeNil)
			So(res.Event.State, ShouldEqual, model.StateRejected)
			So(res.Reason, ShouldEqual, engine.ReasonCooldown)
			So(res.RetryAfter, ShouldBeGreaterThan, 0)

			rec, err := store.Get(ctx, "alice")
			So(err, ShouldBeNil)
			So(rec.Score, ShouldEqual, first.Record.Score)
		})

		Convey("The same rater may still rate a different target", func() {
			res, err := coord.Process(ctx, rating("ev-2", "bob", "carol", 4))
			So(err, ShouldBeNil)
			So(res.Event.State, ShouldEqual, model.StateApplied)
		})

		Convey("A different rater may rate the same target", func() {
			res, err := coord.Process(ctx, rating("ev-2", "carol", "alice", 4))
			So(err, ShouldBeNil)
			So(res.Event.State, ShouldEqual, model.StateApplied)
		})
	})
}

func TestCoordinatorSybil(t *testing.T) {
	ctx := context.Background()

	Convey("Given raters that share a correlation cluster", t, func() {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		store := repository.NewMemStore()
		coord := engine.New(store,
			engine.WithNow(func() time.Time { return now }),
			engine.WithCorrelationFeed(stubFeed{cluster: "ring-7"}))

		Convey("The flood is contained after the first event", func() {
			first, err := coord.Process(ctx, rating("ev-1", "a1", "alice", 5))
			So(err, ShouldBeNil)
			So(first.Event.State, ShouldEqual, model.StateApplied)

			second, err := coord.Process(ctx, rating("ev-2", "a2", "alice", 5))
			So(err, ShouldBeNil)
			So(second.Event.State, ShouldEqual, model.StateQuarantined)
			So(second.Event.Verdict, ShouldEqual, model.VerdictQuarantined)
			So(second.Suspicion, ShouldBeGreaterThanOrEqualTo, 0.7)

			Convey("the quarantined event never touches the score", func() {
				rec, err := store.Get(ctx, "alice")
				So(err, ShouldBeNil)
				So(rec.Score, ShouldEqual, first.Record.Score)
				So(rec.EventCount, ShouldEqual, 2)
			})

			Convey("but is kept in the history for audit", func() {
				h, err := store.History(ctx, "alice", 10)
				So(err, ShouldBeNil)
				So(h, ShouldHaveLength, 2)
				So(h[0].Verdict, ShouldEqual, model.VerdictQuarantined)
				So(h[0].Delta, ShouldEqual, 0)
			})

			Convey("and the window stays saturated for the rest of the flood", func() {
				third, err := coord.Process(ctx, rating("ev-3", "a3", "alice", 5))
				So(err, ShouldBeNil)
				So(third.Event.State, ShouldEqual, model.StateQuarantined)
			})
		})
	})

	Convey("Given independent raters with no shared cluster", t, func() {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		store := repository.NewMemStore()
		coord := engine.New(store, engine.WithNow(func() time.Time { return now }))

		Convey("Many distinct raters all apply cleanly", func() {
			for i := 0; i < 5; i++ {
				res, err := coord.Process(ctx, rating(
					fmt.Sprintf("ev-%d", i), fmt.Sprintf("rater-%d", i), "alice", 4))
				So(err, ShouldBeNil)
				So(res.Event.State, ShouldEqual, model.StateApplied)
			}
		})
	})

	Convey("Given a comment that contradicts the stars", t, func() {
		store := repository.NewMemStore()
		coord := engine.New(store)

		Convey("The event is marked suspicious and its delta dampened", func() {
			clean, err := coord.Process(ctx, rating("ev-clean", "bob", "alice", 5))
			So(err, ShouldBeNil)
			So(clean.Event.Verdict, ShouldEqual, model.VerdictClean)

			ev := rating("ev-sus", "carol", "dave", 5)
			ev.Comment = "bad terrible awful scam"
			sus, err := coord.Process(ctx, ev)
			So(err, ShouldBeNil)
			So(sus.Event.State, ShouldEqual, model.StateApplied)
			So(sus.Event.Verdict, ShouldEqual, model.VerdictSuspicious)
			So(sus.Event.Polarity, ShouldEqual, model.PolarityNegative)
			So(sus.Event.Delta, ShouldBeGreaterThan, 0)
			So(sus.Event.Delta, ShouldBeLessThan, clean.Event.Delta)
		})
	})
}

func TestCoordinatorDecay(t *testing.T) {
	ctx := context.Background()

	Convey("Given a score lifted above baseline", t, func() {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		store := repository.NewMemStore()
		coord := engine.New(store, engine.WithNow(func() time.Time { return now }))

		first, err := coord.Process(ctx, rating("ev-1", "bob", "alice", 5))
		So(err, ShouldBeNil)
		lifted := first.Record.Score
		So(lifted, ShouldBeGreaterThan, 2.5)

		Convey("A rating one half-life later settles the decayed score first", func() {
			now = now.Add(90 * 24 * time.Hour)

			res, err := coord.Process(ctx, rating("ev-2", "carol", "alice", 5))
			So(err, ShouldBeNil)
			So(res.Event.State, ShouldEqual, model.StateApplied)

			h, err := store.History(ctx, "alice", 1)
			So(err, ShouldBeNil)
			So(h[0].OldScore, ShouldBeLessThan, lifted)
			So(h[0].OldScore, ShouldBeGreaterThan, 2.5)
			So(h[0].OldScore, ShouldAlmostEqual, 2.5+(lifted-2.5)/2, 1e-6)
		})
	})
}
