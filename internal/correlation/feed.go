// Package correlation consumes the optional anti-fraud correlation feed.
// Raters sharing device, IP or registration-burst signatures resolve to a
// shared cluster id; absence of the feed degrades Sybil detection
// gracefully rather than failing.
package correlation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/trustfabric/equilibrate/pkg/metrics"
)

// Default feed constants; production values come from config.
const (
	defaultTimeout = time.Second
)

// Feed resolves a rater to its correlation cluster, if any.
type Feed interface {
	// ClusterOf returns the cluster id for a rater, or empty when the
	// rater is not known to be correlated with others.
	ClusterOf(ctx context.Context, raterID string) (string, error)
}

// Option applies a configuration option to the HTTPFeed.
type Option func(*HTTPFeed)

// WithTimeout bounds each lookup.
func WithTimeout(timeout time.Duration) Option {
	return func(f *HTTPFeed) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *HTTPFeed) {
		if client != nil {
			f.client = client
		}
	}
}

// HTTPFeed queries an external identity/anti-fraud service.
type HTTPFeed struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPFeed creates a feed client for the given base URL.
func NewHTTPFeed(baseURL string, opts ...Option) *HTTPFeed {
	f := &HTTPFeed{
		baseURL: baseURL,
		timeout: defaultTimeout,
		client:  &http.Client{},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

type clusterResponse struct {
	ClusterID *string `json:"clusterId"`
}

// ClusterOf looks up the rater's cluster. Transport failures are returned
// as errors; the caller substitutes "no cluster" and continues.
func (f *HTTPFeed) ClusterOf(ctx context.Context, raterID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/clusters/%s", f.baseURL, url.PathEscape(raterID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build correlation request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		metrics.RecordCorrelationFeedError()
		return "", fmt.Errorf("correlation lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		metrics.RecordCorrelationLookup("unknown")
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		metrics.RecordCorrelationFeedError()
		return "", fmt.Errorf("correlation lookup: status %d", resp.StatusCode)
	}

	var out clusterResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.RecordCorrelationFeedError()
		return "", fmt.Errorf("decode correlation response: %w", err)
	}

	if out.ClusterID == nil || *out.ClusterID == "" {
		metrics.RecordCorrelationLookup("none")
		return "", nil
	}
	metrics.RecordCorrelationLookup("cluster")
	return *out.ClusterID, nil
}

// NoopFeed is used when no correlation collaborator is configured.
type NoopFeed struct{}

// ClusterOf always reports no correlation.
func (NoopFeed) ClusterOf(context.Context, string) (string, error) {
	return "", nil
}
