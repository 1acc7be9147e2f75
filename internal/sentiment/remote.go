package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/trustfabric/equilibrate/internal/domain/model"
	"github.com/trustfabric/equilibrate/pkg/metrics"
)

// Default remote classifier constants; production values come from config.
const (
	defaultTimeout = 2 * time.Second
)

// RemoteOption applies a configuration option to the Remote classifier.
type RemoteOption func(*Remote)

// WithTimeout bounds each classification call.
func WithTimeout(timeout time.Duration) RemoteOption {
	return func(r *Remote) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) RemoteOption {
	return func(r *Remote) {
		if client != nil {
			r.client = client
		}
	}
}

// Remote calls the external sentiment classification collaborator over HTTP.
type Remote struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewRemote creates a Remote classifier for the given endpoint.
func NewRemote(url string, opts ...RemoteOption) *Remote {
	r := &Remote{
		url:     url,
		timeout: defaultTimeout,
		client:  &http.Client{},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Polarity   string  `json:"polarity"`
	Confidence float64 `json:"confidence"`
}

// Classify posts the text to the external classifier. Failures and
// timeouts surface as ErrClassifierUnavailable; callers degrade the result
// to Unknown rather than blocking the pipeline.
func (r *Remote) Classify(ctx context.Context, text string) (model.SentimentResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordSentimentLatency(float64(time.Since(start).Milliseconds()))
	}()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return model.SentimentResult{}, fmt.Errorf("%w: %w", ErrClassifierUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return model.SentimentResult{}, fmt.Errorf("%w: %w", ErrClassifierUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return model.SentimentResult{}, fmt.Errorf("%w: %w", ErrClassifierUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.SentimentResult{}, fmt.Errorf("%w: status %d", ErrClassifierUnavailable, resp.StatusCode)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.SentimentResult{}, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}

	polarity, err := parsePolarity(out.Polarity)
	if err != nil {
		return model.SentimentResult{}, err
	}
	conf := out.Confidence
	if conf < 0 || conf > 1 {
		return model.SentimentResult{}, fmt.Errorf("%w: confidence %f out of range", ErrBadResponse, conf)
	}

	return model.SentimentResult{Polarity: polarity, Confidence: conf}, nil
}

func parsePolarity(s string) (model.Polarity, error) {
	switch model.Polarity(s) {
	case model.PolarityPositive, model.PolarityNeutral, model.PolarityNegative, model.PolarityUnknown:
		return model.Polarity(s), nil
	default:
		return model.PolarityUnknown, fmt.Errorf("%w: polarity %q", ErrBadResponse, s)
	}
}
