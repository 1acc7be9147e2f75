package sentiment_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/trustfabric/equilibrate/internal/domain/model"
	"github.com/trustfabric/equilibrate/internal/sentiment"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRuleBased(t *testing.T) {
	Convey("Given the rule-based classifier", t, func() {
		c := sentiment.NewRuleBased()
		ctx := context.Background()

		Convey("When classifying clearly positive text", func() {
			res, err := c.Classify(ctx, "I love this content, great job!")

			Convey("Then it should be positive with some confidence", func() {
				So(err, ShouldBeNil)
				So(res.Polarity, ShouldEqual, model.PolarityPositive)
				So(res.Confidence, ShouldBeGreaterThan, 0.5)
			})
		})

		Convey("When classifying clearly negative text", func() {
			res, err := c.Classify(ctx, "this is disgusting and awful")

			Convey("Then it should be negative", func() {
				So(err, ShouldBeNil)
				So(res.Polarity, ShouldEqual, model.PolarityNegative)
			})
		})

		Convey("When positive and negative words balance out", func() {
			res, err := c.Classify(ctx, "good but also bad")

			Convey("Then it should be neutral", func() {
				So(err, ShouldBeNil)
				So(res.Polarity, ShouldEqual, model.PolarityNeutral)
			})
		})

		Convey("When the text is empty", func() {
			res, err := c.Classify(ctx, "   ")

			Convey("Then it should be neutral with zero confidence", func() {
				So(err, ShouldBeNil)
				So(res.Polarity, ShouldEqual, model.PolarityNeutral)
				So(res.Confidence, ShouldEqual, 0)
			})
		})

		Convey("When a polar word appears inside another word", func() {
			res, err := c.Classify(ctx, "the movie was goodish overall scamper")

			Convey("Then substrings should not count as hits", func() {
				So(err, ShouldBeNil)
				So(res.Polarity, ShouldEqual, model.PolarityNeutral)
			})
		})
	})
}

func TestRemote(t *testing.T) {
	Convey("Given a remote classifier", t, func() {
		ctx := context.Background()

		Convey("When the collaborator answers normally", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"polarity":"negative","confidence":0.87}`))
			}))
			defer srv.Close()

			c := sentiment.NewRemote(srv.URL)
			res, err := c.Classify(ctx, "scam")

			Convey("Then the response should be parsed", func() {
				So(err, ShouldBeNil)
				So(res.Polarity, ShouldEqual, model.PolarityNegative)
				So(res.Confidence, ShouldEqual, 0.87)
			})
		})

		Convey("When the collaborator returns a server error", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer srv.Close()

			c := sentiment.NewRemote(srv.URL)
			_, err := c.Classify(ctx, "text")

			Convey("Then the error should be the unavailable sentinel", func() {
				So(errors.Is(err, sentiment.ErrClassifierUnavailable), ShouldBeTrue)
			})
		})

		Convey("When the collaborator hangs past the timeout", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
			}))
			defer srv.Close()

			c := sentiment.NewRemote(srv.URL, sentiment.WithTimeout(20*time.Millisecond))
			start := time.Now()
			_, err := c.Classify(ctx, "text")

			Convey("Then the call should fail quickly instead of blocking", func() {
				So(errors.Is(err, sentiment.ErrClassifierUnavailable), ShouldBeTrue)
				So(time.Since(start), ShouldBeLessThan, 150*time.Millisecond)
			})
		})

		Convey("When the collaborator answers garbage", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"polarity":"meh","confidence":7}`))
			}))
			defer srv.Close()

			c := sentiment.NewRemote(srv.URL)
			_, err := c.Classify(ctx, "text")

			Convey("Then the error should be the bad response sentinel", func() {
				So(errors.Is(err, sentiment.ErrBadResponse), ShouldBeTrue)
			})
		})
	})
}

type countingClassifier struct {
	calls atomic.Int64
	res   model.SentimentResult
	err   error
}

func (c *countingClassifier) Classify(_ context.Context, _ string) (model.SentimentResult, error) {
	c.calls.Add(1)
	return c.res, c.err
}

func TestCached(t *testing.T) {
	Convey("Given a cached classifier", t, func() {
		ctx := context.Background()

		Convey("When the same text is classified twice within the TTL", func() {
			inner := &countingClassifier{res: model.SentimentResult{Polarity: model.PolarityPositive, Confidence: 0.9}}
			c := sentiment.NewCached(inner, sentiment.WithTTL(time.Minute))

			first, err1 := c.Classify(ctx, "great stuff")
			second, err2 := c.Classify(ctx, "great stuff")

			Convey("Then the inner classifier should be called once", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(first, ShouldResemble, second)
				So(inner.calls.Load(), ShouldEqual, 1)
			})
		})

		Convey("When distinct texts are classified", func() {
			inner := &countingClassifier{res: model.SentimentResult{Polarity: model.PolarityNeutral}}
			c := sentiment.NewCached(inner)

			c.Classify(ctx, "one")
			c.Classify(ctx, "two")

			Convey("Then each should hit the inner classifier", func() {
				So(inner.calls.Load(), ShouldEqual, 2)
			})
		})

		Convey("When the inner classifier fails", func() {
			inner := &countingClassifier{err: sentiment.ErrClassifierUnavailable}
			c := sentiment.NewCached(inner)

			_, err1 := c.Classify(ctx, "text")
			_, err2 := c.Classify(ctx, "text")

			Convey("Then failures should not be cached", func() {
				So(err1, ShouldNotBeNil)
				So(err2, ShouldNotBeNil)
				So(inner.calls.Load(), ShouldEqual, 2)
			})
		})
	})
}
