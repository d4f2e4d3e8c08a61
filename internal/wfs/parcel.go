package wfs

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ToobaSh/urbanviz-cli/internal/geomath"
)

// parcelTypeName is the IGN Parcellaire Express cadastral parcel layer.
const parcelTypeName = "CADASTRALPARCELS.PARCELLAIRE_EXPRESS:parcelle"

const (
	parcelBBoxHalfWidthDeg = 0.001
	parcelMaxFeatures      = 10
)

// Parcel is the cadastral parcel nearest to a query point.
type Parcel struct {
	// Outline is the parcel's outer ring in (lat, lon) order, ready for
	// map display.
	Outline []geomath.Point `json:"outline"`

	// AreaM2 is the parcel surface in square meters, zero when the
	// source attributes carry no parseable surface field.
	AreaM2 float64 `json:"area_m2,omitempty"`

	// Properties holds the raw source attributes.
	Properties map[string]any `json:"properties"`
}

// ParcelLookup finds cadastral parcels around a point.
type ParcelLookup struct {
	client      *Client
	typeName    string
	bboxDeg     float64
	maxFeatures int
}

// NewParcelLookup creates a parcel lookup backed by the given client.
func NewParcelLookup(client *Client) *ParcelLookup {
	return &ParcelLookup{
		client:      client,
		typeName:    parcelTypeName,
		bboxDeg:     parcelBBoxHalfWidthDeg,
		maxFeatures: parcelMaxFeatures,
	}
}

// WithLayer overrides the WFS layer name.
func (l *ParcelLookup) WithLayer(typeName string) *ParcelLookup {
	l.typeName = typeName
	return l
}

// Find returns the parcel whose centroid is nearest to pt, or nil when
// the box holds no usable parcel. Transport and parse failures are
// absorbed into the nil outcome; a parcel lookup never fails the
// enclosing resolution.
func (l *ParcelLookup) Find(ctx context.Context, pt geomath.Point) *Parcel {
	bbox := geomath.BBoxAround(pt, l.bboxDeg, l.bboxDeg)
	fc, err := l.client.GetFeatures(ctx, l.typeName, bbox, l.maxFeatures)
	if err != nil {
		zap.L().Debug("wfs: parcel lookup produced nothing",
			zap.Float64("lat", pt.Lat),
			zap.Float64("lon", pt.Lon),
			zap.Error(err),
		)
		return nil
	}

	best := nearestFeature(pt, fc)
	if best == nil {
		return nil
	}

	// Source rings are (lon, lat); downstream consumers want (lat, lon).
	outline := make([]geomath.Point, 0, len(best.ring))
	for _, coord := range best.ring {
		outline = append(outline, geomath.Point{Lat: coord[1], Lon: coord[0]})
	}

	return &Parcel{
		Outline:    outline,
		AreaM2:     parcelArea(best.properties),
		Properties: best.properties,
	}
}

// parcelArea scans attributes for the first key containing "contenance"
// or "surface" (case-insensitive) whose value parses as a number, with
// comma accepted as decimal separator. Unparseable values are tolerated
// and the scan continues; zero means no surface was found. Keys are
// visited in sorted order so the scan is deterministic.
func parcelArea(props map[string]any) float64 {
	keys := make([]string, 0, len(props))
	for key := range props {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		lk := strings.ToLower(key)
		if !strings.Contains(lk, "contenance") && !strings.Contains(lk, "surface") {
			continue
		}
		if area, ok := parseArea(props[key]); ok {
			return area
		}
	}
	return 0
}

func parseArea(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
