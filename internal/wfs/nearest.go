package wfs

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/ToobaSh/urbanviz-cli/internal/geomath"
)

// candidate pairs a feature's first polygon ring with its attributes.
type candidate struct {
	// ring holds vertices in (lon, lat) order as stored by the source.
	ring       []geom.Coord
	properties map[string]any
}

// firstRing extracts the outer ring of a feature's geometry: ring 0 of a
// Polygon, or ring 0 of part 0 of a MultiPolygon. Features with any
// other geometry, or with an empty ring, yield nil.
func firstRing(g geom.T) []geom.Coord {
	switch geometry := g.(type) {
	case *geom.Polygon:
		if geometry.NumLinearRings() > 0 {
			return geometry.LinearRing(0).Coords()
		}
	case *geom.MultiPolygon:
		if geometry.NumPolygons() > 0 {
			poly := geometry.Polygon(0)
			if poly.NumLinearRings() > 0 {
				return poly.LinearRing(0).Coords()
			}
		}
	}
	return nil
}

// nearestFeature selects the candidate whose ring centroid lies closest
// to pt by squared planar distance in degree space. The centroid is the
// arithmetic mean of the ring vertices, not area-weighted; the narrow
// bounding boxes used by the lookups keep the planar approximation
// acceptable. Ties resolve to the first feature in response order.
// Features with no extractable ring are skipped. Returns nil when no
// candidate has a usable ring.
func nearestFeature(pt geomath.Point, fc *geojson.FeatureCollection) *candidate {
	var best *candidate
	var bestD2 float64

	for _, feat := range fc.Features {
		if feat == nil || feat.Geometry == nil {
			continue
		}
		ring := firstRing(feat.Geometry)
		if len(ring) == 0 {
			continue
		}

		var sumLon, sumLat float64
		for _, coord := range ring {
			sumLon += coord[0]
			sumLat += coord[1]
		}
		n := float64(len(ring))
		centroidLon := sumLon / n
		centroidLat := sumLat / n

		dx := centroidLon - pt.Lon
		dy := centroidLat - pt.Lat
		d2 := dx*dx + dy*dy

		if best == nil || d2 < bestD2 {
			bestD2 = d2
			best = &candidate{ring: ring, properties: feat.Properties}
		}
	}

	return best
}
