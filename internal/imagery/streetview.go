package imagery

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ToobaSh/urbanviz-cli/internal/geomath"
)

const streetViewEmbedURL = "https://www.google.com/maps/embed/v1/streetview"

const defaultFOV = 80

// StreetView is the commercial fallback provider. It produces a
// deterministic embeddable view URL keyed by point and field of view;
// no query is issued, so it always "succeeds" once a key is configured.
type StreetView struct {
	key string
	fov int
}

// NewStreetView creates the Street View provider. A fov of 0 selects
// the default field of view.
func NewStreetView(key string, fov int) *StreetView {
	if fov <= 0 {
		fov = defaultFOV
	}
	return &StreetView{key: key, fov: fov}
}

// Name implements Provider.
func (s *StreetView) Name() string { return "google" }

// Available implements Provider: a non-empty key is the only check;
// an invalid key surfaces as an embed failure downstream, not here.
func (s *StreetView) Available() bool { return s.key != "" }

// Resolve implements Provider.
func (s *StreetView) Resolve(_ context.Context, pt geomath.Point, _ bool) *Selection {
	if !s.Available() {
		return nil
	}
	return &Selection{
		Provider: s.Name(),
		EmbedURL: s.EmbedURL(pt),
	}
}

// EmbedURL builds the embeddable Street View URL for a point.
func (s *StreetView) EmbedURL(pt geomath.Point) string {
	params := url.Values{
		"key":      {s.key},
		"location": {fmt.Sprintf("%v,%v", pt.Lat, pt.Lon)},
		"fov":      {fmt.Sprintf("%d", s.fov)},
	}
	return streetViewEmbedURL + "?" + params.Encode()
}
