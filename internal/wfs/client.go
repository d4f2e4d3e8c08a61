// Package wfs queries WFS 2.0 feature services for the cadastral parcel
// and zoning layers, selecting the feature nearest to a query point.
package wfs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"golang.org/x/time/rate"

	"github.com/ToobaSh/urbanviz-cli/internal/geomath"
)

// defaultBaseURL is the IGN Géoplateforme WFS endpoint serving both the
// cadastre and urbanism layers.
const defaultBaseURL = "https://data.geopf.fr/wfs/ows"

const srsName = "EPSG:4326"

// Client issues GetFeature requests against a WFS endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption configures the WFS client.
type ClientOption func(*Client)

// WithBaseURL overrides the WFS endpoint.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit for GetFeature calls.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewClient creates a WFS client with the given options.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetFeatures requests up to count features of the given layer
// intersecting bbox, as GeoJSON in EPSG:4326.
func (c *Client) GetFeatures(ctx context.Context, typeName string, bbox geomath.BBox, count int) (*geojson.FeatureCollection, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "wfs: rate limit")
	}

	params := url.Values{
		"SERVICE":      {"WFS"},
		"VERSION":      {"2.0.0"},
		"REQUEST":      {"GetFeature"},
		"TYPENAMES":    {typeName},
		"SRSNAME":      {srsName},
		"BBOX":         {bbox.String() + "," + srsName},
		"OUTPUTFORMAT": {"application/json"},
		"COUNT":        {strconv.Itoa(count)},
	}

	reqURL := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "wfs: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "wfs: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("wfs: %s returned status %d", typeName, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "wfs: read body")
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, eris.Wrap(err, "wfs: parse feature collection")
	}

	return &fc, nil
}
