// Package sentiment adapts external comment classifiers to the scoring
// pipeline. Polarity is only ever a secondary signal: it can raise Sybil
// Guard flags but never overrides the numeric star rating.
package sentiment

import (
	"context"

	"github.com/trustfabric/equilibrate/internal/domain/model"
)

// Classifier turns free-text comments into a polarity signal.
// Implementations must honor ctx deadlines; the scoring pipeline never
// waits on a classifier indefinitely.
type Classifier interface {
	Classify(ctx context.Context, text string) (model.SentimentResult, error)
}

// Closer is implemented by classifiers holding external resources.
type Closer interface {
	Close() error
}
