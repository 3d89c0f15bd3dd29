// Package geocode resolves free-form addresses via the Google Geocoding API,
// with optional region biasing and batch support.
package geocode

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Result holds the geocoding output for one address. An unmatched address
// has Matched false and an empty FormattedAddress.
type Result struct {
	FormattedAddress string
	Latitude         float64
	Longitude        float64
	Matched          bool
}

// Client geocodes addresses. Implementations must keep BatchGeocode results
// index-aligned with the input slice.
type Client interface {
	// Geocode resolves a single free-form address. region is an optional
	// ccTLD bias ("at", "de"); empty means no restriction.
	Geocode(ctx context.Context, address, region string) (*Result, error)

	// BatchGeocode resolves multiple addresses. Per-address failures yield
	// unmatched results; an error is returned only when nothing could be
	// attempted.
	BatchGeocode(ctx context.Context, addresses []string, region string) ([]Result, error)
}

// batchConcurrency bounds parallel per-address lookups in BatchGeocode.
const batchConcurrency = 8

// Option configures the geocoder.
type Option func(*geocoder)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithBaseURL overrides the Google Geocoding endpoint, for tests.
func WithBaseURL(url string) Option {
	return func(g *geocoder) {
		g.baseURL = url
	}
}

// WithRateLimit sets the requests-per-second limit for API calls.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), int(rps))
	}
}

type geocoder struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a geocoding Client with the given options.
func NewClient(apiKey string, opts ...Option) Client {
	g := &geocoder{
		apiKey:     apiKey,
		baseURL:    googleGeocodeURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BatchGeocode resolves addresses concurrently, bounded by batchConcurrency.
// Results stay index-aligned with addresses; a failed lookup becomes an
// unmatched result rather than aborting the batch.
func (g *geocoder) BatchGeocode(ctx context.Context, addresses []string, region string) ([]Result, error) {
	if len(addresses) == 0 {
		return nil, nil
	}

	results := make([]Result, len(addresses))
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(batchConcurrency)

	for i, addr := range addresses {
		grp.Go(func() error {
			r, err := g.Geocode(gctx, addr, region)
			if err != nil {
				// Per-address failure degrades to unmatched; context
				// cancellation aborts the rest of the batch.
				if gctx.Err() != nil {
					return gctx.Err()
				}
				results[i] = Result{Matched: false}
				return nil
			}
			results[i] = *r
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
