package model_test

import (
	"testing"

	"github.com/trustfabric/equilibrate/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSentimentContradiction(t *testing.T) {
	Convey("Given sentiment results and star ratings", t, func() {
		Convey("When positive sentiment accompanies a low rating", func() {
			s := model.SentimentResult{Polarity: model.PolarityPositive, Confidence: 0.9}

			Convey("Then it should contradict", func() {
				So(s.Contradicts(1), ShouldBeTrue)
				So(s.Contradicts(2), ShouldBeTrue)
			})

			Convey("And it should not contradict middling or high ratings", func() {
				So(s.Contradicts(3), ShouldBeFalse)
				So(s.Contradicts(5), ShouldBeFalse)
			})
		})

		Convey("When negative sentiment accompanies a high rating", func() {
			s := model.SentimentResult{Polarity: model.PolarityNegative, Confidence: 0.8}

			So(s.Contradicts(5), ShouldBeTrue)
			So(s.Contradicts(4), ShouldBeTrue)
			So(s.Contradicts(3), ShouldBeFalse)
			So(s.Contradicts(1), ShouldBeFalse)
		})

		Convey("When the polarity is neutral or unknown", func() {
			for _, p := range []model.Polarity{model.PolarityNeutral, model.PolarityUnknown} {
				s := model.SentimentResult{Polarity: p}
				So(s.Contradicts(1), ShouldBeFalse)
				So(s.Contradicts(5), ShouldBeFalse)
			}
		})
	})
}
