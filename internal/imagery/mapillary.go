package imagery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ToobaSh/urbanviz-cli/internal/geomath"
)

const mapillaryBaseURL = "https://graph.mapillary.com"

// mapillaryTokenPrefix is the shape of a valid Graph API token; anything
// else is treated as a missing credential.
const mapillaryTokenPrefix = "MLY|"

// mapillaryFields is the field selection requested on every image query.
const mapillaryFields = "id,computed_geometry,thumb_1024_url,thumb_2048_url,captured_at,is_pano"

const (
	closestLimit = 20
	bboxLimit    = 50
)

// defaultRadiiM is the bbox escalation ladder in meters.
var defaultRadiiM = []float64{150, 300, 600, 1200, 3000, 6000, 10000}

// RadiiFromBase builds the escalation ladder from a configured base
// radius: the first two tiers derive from the base, the tail is fixed.
func RadiiFromBase(baseM float64) []float64 {
	if baseM <= 0 {
		return defaultRadiiM
	}
	second := baseM * 2
	if second < 300 {
		second = 300
	}
	return []float64{baseM, second, 600, 1200, 3000, 6000, 10000}
}

// Mapillary searches the Mapillary Graph API for street imagery.
type Mapillary struct {
	baseURL    string
	token      string
	httpClient *http.Client
	radiiM     []float64
}

// MapillaryOption configures the Mapillary provider.
type MapillaryOption func(*Mapillary)

// WithMapillaryBaseURL overrides the Graph API endpoint.
func WithMapillaryBaseURL(u string) MapillaryOption {
	return func(m *Mapillary) {
		m.baseURL = u
	}
}

// WithMapillaryHTTPClient sets a custom HTTP client.
func WithMapillaryHTTPClient(hc *http.Client) MapillaryOption {
	return func(m *Mapillary) {
		m.httpClient = hc
	}
}

// WithRadii sets the bbox escalation ladder in meters.
func WithRadii(radiiM []float64) MapillaryOption {
	return func(m *Mapillary) {
		if len(radiiM) > 0 {
			m.radiiM = radiiM
		}
	}
}

// NewMapillary creates the Mapillary provider with the given token.
func NewMapillary(token string, opts ...MapillaryOption) *Mapillary {
	m := &Mapillary{
		baseURL:    mapillaryBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		radiiM:     defaultRadiiM,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name implements Provider.
func (m *Mapillary) Name() string { return "mapillary" }

// Available implements Provider: the token must carry the Graph API
// prefix. A malformed token degrades this provider, nothing else.
func (m *Mapillary) Available() bool {
	return strings.HasPrefix(m.token, mapillaryTokenPrefix)
}

// Resolve implements Provider. It runs the tiered search honoring the
// panorama preference; if that full pass yields nothing at all, it runs
// one more pass without the preference. The re-pass does not trigger
// when the first pass settled for a non-panoramic image.
func (m *Mapillary) Resolve(ctx context.Context, pt geomath.Point, preferPano bool) *Selection {
	best := m.FindBest(ctx, pt, preferPano)
	if best == nil && preferPano {
		best = m.FindBest(ctx, pt, false)
	}
	if best == nil {
		return nil
	}
	return &Selection{
		Provider:  m.Name(),
		Candidate: best,
		DeepLink:  Deeplink(best.ID),
	}
}

// FindBest runs one full tiered search: a closest-images query first,
// then bounding boxes of increasing radius. A tier with any candidate
// resolves to a single answer; escalation happens only when a tier
// returns nothing, with per-tier failures absorbed.
func (m *Mapillary) FindBest(ctx context.Context, pt geomath.Point, requirePano bool) *Candidate {
	candidates, err := m.closestImages(ctx, pt)
	if err != nil {
		zap.L().Debug("mapillary: closest-images tier produced nothing", zap.Error(err))
	} else if len(candidates) > 0 {
		return pickBest(pt, candidates, requirePano)
	}

	for _, radius := range m.radiiM {
		dLat, dLon := geomath.DegreesForMeters(pt.Lat, radius)
		bbox := geomath.BBoxAround(pt, dLat, dLon)

		candidates, err := m.imagesInBBox(ctx, bbox)
		if err != nil {
			zap.L().Debug("mapillary: bbox tier produced nothing",
				zap.Float64("radius_m", radius),
				zap.Error(err),
			)
			continue
		}
		if len(candidates) == 0 {
			continue
		}
		return pickBest(pt, candidates, requirePano)
	}

	return nil
}

// pickBest resolves a non-empty tier to one candidate: the best-ranked
// panorama when one is required and present, otherwise the best-ranked
// candidate outright. A tier never escalates just because the panorama
// preference went unmet.
func pickBest(pt geomath.Point, candidates []Candidate, requirePano bool) *Candidate {
	ranked := Rank(pt, candidates)
	if requirePano {
		for i := range ranked {
			if ranked[i].IsPano {
				return &ranked[i]
			}
		}
	}
	return &ranked[0]
}

// closestImages issues the provider-native "closest to point" query.
func (m *Mapillary) closestImages(ctx context.Context, pt geomath.Point) ([]Candidate, error) {
	params := url.Values{
		"access_token": {m.token},
		"fields":       {mapillaryFields},
		"limit":        {strconv.Itoa(closestLimit)},
		"closeto":      {fmt.Sprintf("%v,%v", pt.Lat, pt.Lon)},
	}
	return m.images(ctx, params)
}

// imagesInBBox issues a bounding-box query.
func (m *Mapillary) imagesInBBox(ctx context.Context, bbox geomath.BBox) ([]Candidate, error) {
	params := url.Values{
		"access_token": {m.token},
		"fields":       {mapillaryFields},
		"limit":        {strconv.Itoa(bboxLimit)},
		"bbox":         {bbox.String()},
	}
	return m.images(ctx, params)
}

// mapillaryImage is one record of the Graph API images response.
type mapillaryImage struct {
	ID               string `json:"id"`
	ThumbURL         string `json:"thumb_1024_url"`
	LargeURL         string `json:"thumb_2048_url"`
	CapturedAt       any    `json:"captured_at"`
	IsPano           bool   `json:"is_pano"`
	ComputedGeometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"computed_geometry"`
}

func (m *Mapillary) images(ctx context.Context, params url.Values) ([]Candidate, error) {
	reqURL := m.baseURL + "/images?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "mapillary: build request")
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "mapillary: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("mapillary: images returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "mapillary: read body")
	}

	var payload struct {
		Data []mapillaryImage `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, eris.Wrap(err, "mapillary: parse response")
	}

	candidates := make([]Candidate, 0, len(payload.Data))
	for _, img := range payload.Data {
		c := Candidate{
			ID:         img.ID,
			IsPano:     img.IsPano,
			ThumbURL:   img.ThumbURL,
			LargeURL:   img.LargeURL,
			CapturedAt: formatCaptureDate(img.CapturedAt),
		}
		// Coordinates arrive (lon, lat).
		if len(img.ComputedGeometry.Coordinates) == 2 {
			c.Coordinate = &geomath.Point{
				Lat: img.ComputedGeometry.Coordinates[1],
				Lon: img.ComputedGeometry.Coordinates[0],
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// Deeplink returns the Mapillary web viewer URL for an image id, or ""
// when there is no id to link.
func Deeplink(imageID string) string {
	if imageID == "" {
		return ""
	}
	return "https://www.mapillary.com/app/?focus=photo&pKey=" + url.QueryEscape(imageID)
}
