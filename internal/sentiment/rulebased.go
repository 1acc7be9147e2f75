package sentiment

import (
	"context"
	"strings"

	"github.com/trustfabric/equilibrate/internal/domain/model"
)

// Word lists for the rule-based fallback classifier.
var positiveWords = map[string]struct{}{
	"good": {}, "great": {}, "awesome": {}, "nice": {}, "love": {},
	"excellent": {}, "amazing": {}, "like": {}, "well": {}, "fantastic": {},
	"brilliant": {}, "happy": {}, "recommend": {},
}

var negativeWords = map[string]struct{}{
	"bad": {}, "terrible": {}, "hate": {}, "awful": {}, "worst": {},
	"dislike": {}, "sucks": {}, "stupid": {}, "vulgar": {}, "disgusting": {},
	"scam": {}, "fraud": {},
}

// RuleBased is a tiny lexicon classifier. It requires no external service
// and serves as the always-available fallback.
type RuleBased struct{}

// NewRuleBased creates a rule-based classifier.
func NewRuleBased() *RuleBased {
	return &RuleBased{}
}

// Classify counts polar words in the text. It never fails.
func (r *RuleBased) Classify(_ context.Context, text string) (model.SentimentResult, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return model.SentimentResult{Polarity: model.PolarityNeutral, Confidence: 0}, nil
	}

	score := 0
	for _, word := range strings.FieldsFunc(strings.ToLower(trimmed), isWordBoundary) {
		if _, ok := positiveWords[word]; ok {
			score++
		}
		if _, ok := negativeWords[word]; ok {
			score--
		}
	}

	switch {
	case score > 0:
		return model.SentimentResult{Polarity: model.PolarityPositive, Confidence: confidence(score)}, nil
	case score < 0:
		return model.SentimentResult{Polarity: model.PolarityNegative, Confidence: confidence(-score)}, nil
	default:
		return model.SentimentResult{Polarity: model.PolarityNeutral, Confidence: 0.3}, nil
	}
}

// confidence grows with the number of polar hits but stays well below a
// model-grade signal.
func confidence(hits int) float64 {
	c := 0.5 + 0.1*float64(hits)
	if c > 0.9 {
		return 0.9
	}
	return c
}

func isWordBoundary(r rune) bool {
	return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
}
