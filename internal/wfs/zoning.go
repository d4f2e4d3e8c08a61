package wfs

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ToobaSh/urbanviz-cli/internal/geomath"
)

// zoningTypeName is the Géoportail de l'Urbanisme zoning layer.
const zoningTypeName = "wfs_du:zone_urba"

const (
	zoningBBoxHalfWidthDeg = 0.002
	zoningMaxFeatures      = 10

	// maxZoneCodeLen bounds the fallback scan: zone codes are short
	// labels like "UB" or "N", long strings are descriptions.
	maxZoneCodeLen = 10
)

// zoneCodeAliases lists attribute keys tried in order for the zone code.
// WFS layer attribute casing is not stable across municipalities, hence
// the explicit variants.
var zoneCodeAliases = []string{
	"libelle", "LIBELLE",
	"ZONE", "zone",
	"CODE_ZONE", "code_zone",
	"CODEZONE", "codezone",
	"typezone",
}

// zoneLabelAliases lists attribute keys tried in order for the long
// zone description.
var zoneLabelAliases = []string{
	"libelong", "LIBELLE_LONG", "LIBELLELONG",
	"LIBELLE", "libelle",
	"LIB_ZONE", "LIBELLE_ZONE",
	"NOM_ZONE", "nom_zone",
}

// Zoning is the municipal zoning classification at a query point.
// Empty ZoneCode or ZoneLabel means the source carried no such value.
type Zoning struct {
	ZoneCode   string         `json:"zone_code,omitempty"`
	ZoneLabel  string         `json:"zone_label,omitempty"`
	Properties map[string]any `json:"properties"`
}

// ZoningLookup finds zoning polygons around a point.
type ZoningLookup struct {
	client      *Client
	typeName    string
	bboxDeg     float64
	maxFeatures int
}

// NewZoningLookup creates a zoning lookup backed by the given client.
func NewZoningLookup(client *Client) *ZoningLookup {
	return &ZoningLookup{
		client:      client,
		typeName:    zoningTypeName,
		bboxDeg:     zoningBBoxHalfWidthDeg,
		maxFeatures: zoningMaxFeatures,
	}
}

// WithLayer overrides the WFS layer name.
func (l *ZoningLookup) WithLayer(typeName string) *ZoningLookup {
	l.typeName = typeName
	return l
}

// Find returns the zoning polygon nearest to pt, or nil when the box
// holds no usable zone. Failures are absorbed into the nil outcome.
func (l *ZoningLookup) Find(ctx context.Context, pt geomath.Point) *Zoning {
	bbox := geomath.BBoxAround(pt, l.bboxDeg, l.bboxDeg)
	fc, err := l.client.GetFeatures(ctx, l.typeName, bbox, l.maxFeatures)
	if err != nil {
		zap.L().Debug("wfs: zoning lookup produced nothing",
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

	props := best.properties
	code := probeAliases(props, zoneCodeAliases)
	if code == "" {
		code = scanZoneKey(props)
	}

	return &Zoning{
		ZoneCode:   code,
		ZoneLabel:  probeAliases(props, zoneLabelAliases),
		Properties: props,
	}
}

// probeAliases returns the first non-empty string value among the alias
// keys, in alias order.
func probeAliases(props map[string]any, aliases []string) string {
	for _, key := range aliases {
		if s, ok := props[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// scanZoneKey is the last-resort zone code probe: any key containing
// "zone" whose value is a short string. Keys are visited in sorted
// order for determinism.
func scanZoneKey(props map[string]any) string {
	keys := make([]string, 0, len(props))
	for key := range props {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !strings.Contains(strings.ToLower(key), "zone") {
			continue
		}
		if s, ok := props[key].(string); ok && s != "" && len(s) <= maxZoneCodeLen {
			return s
		}
	}
	return ""
}

// Summary converts the raw zoning attributes into user-facing labels,
// dropping null and empty values.
func (z *Zoning) Summary() map[string]string {
	if z == nil || len(z.Properties) == 0 {
		return nil
	}

	fields := []struct {
		label string
		key   string
	}{
		{"Zone code", "libelle"},
		{"Zone type", "typezone"},
		{"Zone description", "libelong"},
		{"Validation date", "datvalid"},
		{"Regulation file", "nomfic"},
		{"Authorized uses", "destoui"},
		{"Prohibited uses", "destnon"},
	}

	out := make(map[string]string)
	for _, f := range fields {
		s, ok := z.Properties[f.key].(string)
		if !ok || s == "" || s == "NULL" {
			continue
		}
		out[f.label] = s
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
