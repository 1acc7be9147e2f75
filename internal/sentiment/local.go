package sentiment

import (
	"context"
	"fmt"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/trustfabric/equilibrate/internal/domain/model"
)

// Local runs sentiment classification in-process through a hugot ONNX
// pipeline, avoiding the network hop to an external collaborator.
type Local struct {
	session  *hugot.Session
	pipeline *pipelines.TextClassificationPipeline
}

// NewLocal loads the text-classification model at modelPath and prepares
// an inference pipeline.
func NewLocal(modelPath string) (*Local, error) {
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("create hugot session: %w", err)
	}

	config := hugot.TextClassificationConfig{
		ModelPath: modelPath,
		Name:      "sentiment-pipeline",
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("create sentiment pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("create sentiment pipeline: %w", err)
	}

	return &Local{session: session, pipeline: pipeline}, nil
}

// Classify runs the model over the comment text. The model's label set is
// mapped onto the engine's polarity values; unrecognized labels degrade to
// Unknown.
func (l *Local) Classify(ctx context.Context, text string) (model.SentimentResult, error) {
	if err := ctx.Err(); err != nil {
		return model.SentimentResult{}, fmt.Errorf("%w: %w", ErrClassifierUnavailable, err)
	}

	result, err := l.pipeline.RunPipeline([]string{text})
	if err != nil {
		return model.SentimentResult{}, fmt.Errorf("%w: %w", ErrClassifierUnavailable, err)
	}
	if len(result.ClassificationOutputs) == 0 || len(result.ClassificationOutputs[0]) == 0 {
		return model.SentimentResult{}, fmt.Errorf("%w: empty classification output", ErrBadResponse)
	}

	best := result.ClassificationOutputs[0][0]
	for _, candidate := range result.ClassificationOutputs[0][1:] {
		if candidate.Score > best.Score {
			best = candidate
		}
	}

	return model.SentimentResult{
		Polarity:   labelToPolarity(best.Label),
		Confidence: float64(best.Score),
	}, nil
}

// Close releases the ONNX session.
func (l *Local) Close() error {
	if err := l.session.Destroy(); err != nil {
		return fmt.Errorf("destroy hugot session: %w", err)
	}
	return nil
}

// labelToPolarity maps common sentiment model label conventions
// (POSITIVE/NEGATIVE, LABEL_0/LABEL_1, star labels) to polarity values.
func labelToPolarity(label string) model.Polarity {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "pos"), l == "label_1", strings.HasPrefix(l, "4 star"), strings.HasPrefix(l, "5 star"):
		return model.PolarityPositive
	case strings.Contains(l, "neg"), l == "label_0", strings.HasPrefix(l, "1 star"), strings.HasPrefix(l, "2 star"):
		return model.PolarityNegative
	case strings.Contains(l, "neutral"), strings.HasPrefix(l, "3 star"):
		return model.PolarityNeutral
	default:
		return model.PolarityUnknown
	}
}
