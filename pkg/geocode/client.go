// Package geocode resolves free-text addresses to geographic coordinates
// via a Nominatim-compatible search endpoint.
package geocode

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/ToobaSh/urbanviz-cli/internal/resilience"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// defaultUserAgent identifies the client; Nominatim's usage policy
// rejects anonymous agents.
const defaultUserAgent = "urbanviz-cli/1.0"

// Client geocodes free-text addresses.
type Client interface {
	// Geocode resolves an address to its single best match. An address
	// the service does not know yields Matched=false, not an error.
	Geocode(ctx context.Context, address string) (*Result, error)
}

// Result holds the geocoding output for one address.
type Result struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Label     string  `json:"label"`
	Matched   bool    `json:"matched"`
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithBaseURL overrides the search endpoint base URL.
func WithBaseURL(u string) Option {
	return func(g *geocoder) {
		g.baseURL = u
	}
}

// WithUserAgent sets the User-Agent header sent on search requests.
func WithUserAgent(ua string) Option {
	return func(g *geocoder) {
		g.userAgent = ua
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit for search calls.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithRetryPolicy overrides the transient-failure retry policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(g *geocoder) {
		g.retry = p
	}
}

type geocoder struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.Policy
}

// NewClient creates a geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		baseURL:    defaultBaseURL,
		userAgent:  defaultUserAgent,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		limiter:    rate.NewLimiter(1, 1), // Nominatim policy: 1 req/s
		retry:      resilience.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}
