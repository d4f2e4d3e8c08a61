// Package geomath provides the small geographic helpers shared by the
// lookup components: great-circle distance and degree offsets for a
// metric search radius. Pure functions, no I/O.
package geomath

import (
	"fmt"
	"math"
)

// earthRadiusM is the spherical-Earth radius used for haversine distances.
const earthRadiusM = 6371000.0

// metersPerDegreeLat is the approximate ground length of one degree of latitude.
const metersPerDegreeLat = 111320.0

// Point is a geographic coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point lies within geographic bounds.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// BBox is an axis-aligned geographic bounding box.
type BBox struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// BBoxAround builds a box centered on pt with the given half-widths in degrees.
func BBoxAround(pt Point, dLat, dLon float64) BBox {
	return BBox{
		MinLon: pt.Lon - dLon,
		MinLat: pt.Lat - dLat,
		MaxLon: pt.Lon + dLon,
		MaxLat: pt.Lat + dLat,
	}
}

// String renders the box in lon/lat corner order as used by WFS and
// Mapillary bbox parameters.
func (b BBox) String() string {
	return fmt.Sprintf("%v,%v,%v,%v", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b Point) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)
	s := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Pow(math.Sin(dLon/2), 2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(s))
}

// DegreesForMeters converts a metric distance at the given latitude into
// approximate latitude and longitude offsets in degrees. The longitude
// offset shrinks by cos(lat) so the box narrows toward the poles.
func DegreesForMeters(latDeg, meters float64) (dLat, dLon float64) {
	dLat = meters / metersPerDegreeLat
	dLon = dLat * math.Cos(radians(latDeg))
	return dLat, dLon
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
