// Package imagery resolves street-level photographs near a point,
// preferring panoramas, with provider fallback from Mapillary to
// Google Street View.
package imagery

import (
	"math"
	"sort"
	"time"

	"github.com/ToobaSh/urbanviz-cli/internal/geomath"
)

// Candidate is one image returned by the crowd-sourced provider.
type Candidate struct {
	ID         string         `json:"id"`
	IsPano     bool           `json:"is_pano"`
	ThumbURL   string         `json:"thumb_url"`
	LargeURL   string         `json:"large_url,omitempty"`
	CapturedAt string         `json:"captured_at,omitempty"`
	Coordinate *geomath.Point `json:"coordinate,omitempty"`
}

// BestThumb returns the preferred display URL: the standard thumbnail,
// falling back to the large one.
func (c *Candidate) BestThumb() string {
	if c.ThumbURL != "" {
		return c.ThumbURL
	}
	return c.LargeURL
}

// distanceFrom returns the haversine distance from pt, or +Inf when the
// candidate has no geometry so it sorts last within its class.
func (c *Candidate) distanceFrom(pt geomath.Point) float64 {
	if c.Coordinate == nil {
		return math.Inf(1)
	}
	return geomath.Haversine(pt, *c.Coordinate)
}

// Rank orders candidates for selection: panoramic images first, then
// ascending distance from pt within each class. The sort is stable so
// equal-ranked candidates keep their response order.
func Rank(pt geomath.Point, candidates []Candidate) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].IsPano != ranked[j].IsPano {
			return ranked[i].IsPano
		}
		return ranked[i].distanceFrom(pt) < ranked[j].distanceFrom(pt)
	})
	return ranked
}

// formatCaptureDate normalizes a provider capture timestamp to an ISO
// date. Numeric values are epoch seconds, or milliseconds when larger
// than 1e12; strings are expected to be RFC 3339-ish and are truncated
// to the date on parse failure.
func formatCaptureDate(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case float64:
		if v == 0 {
			return ""
		}
		if v > 1e12 {
			v /= 1000
		}
		return time.Unix(int64(v), 0).UTC().Format("2006-01-02")
	case string:
		if v == "" {
			return ""
		}
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			return ts.UTC().Format("2006-01-02")
		}
		if len(v) > 10 {
			return v[:10]
		}
		return v
	default:
		return ""
	}
}
