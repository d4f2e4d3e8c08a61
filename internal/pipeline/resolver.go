// Package pipeline orchestrates the address resolution workflow: geocode
// the address, then fan out to parcel, zoning and imagery lookups.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ToobaSh/urbanviz-cli/internal/geomath"
	"github.com/ToobaSh/urbanviz-cli/internal/imagery"
	"github.com/ToobaSh/urbanviz-cli/internal/store"
	"github.com/ToobaSh/urbanviz-cli/internal/wfs"
	"github.com/ToobaSh/urbanviz-cli/pkg/geocode"
)

// ErrEmptyAddress is returned when Resolve is called with a blank address.
var ErrEmptyAddress = errors.New("pipeline: empty address")

// Report is the combined outcome of one address resolution. Any section
// except Geocode may be nil when the corresponding lookup found nothing.
type Report struct {
	Address       string             `json:"address"`
	Geocode       *geocode.Result    `json:"geocode"`
	Parcel        *wfs.Parcel        `json:"parcel,omitempty"`
	Zoning        *wfs.Zoning        `json:"zoning,omitempty"`
	RegulationURL string             `json:"regulation_url,omitempty"`
	Imagery       *imagery.Selection `json:"imagery,omitempty"`
	ResolvedAt    time.Time          `json:"resolved_at"`
}

// Options control a single resolution run.
type Options struct {
	PreferPano  bool
	ImageryMode string
	SkipImagery bool
	SkipParcel  bool
	SkipZoning  bool
}

// TTLs hold the cache lifetimes for each lookup kind.
type TTLs struct {
	Geocode time.Duration
	Parcel  time.Duration
	Zoning  time.Duration
}

// DefaultTTLs reflect how fast each source churns: geocoding is nearly
// static, parcels change slowly, zoning documents are republished often.
func DefaultTTLs() TTLs {
	return TTLs{
		Geocode: time.Hour,
		Parcel:  30 * time.Minute,
		Zoning:  10 * time.Minute,
	}
}

// Resolver wires the lookup clients into one resolution workflow.
type Resolver struct {
	geocoder geocode.Client
	parcels  *wfs.ParcelLookup
	zoning   *wfs.ZoningLookup
	imagery  *imagery.Resolver
	store    *store.Store
	ttls     TTLs
}

// New creates a resolver. Any of parcels, zoning and img may be nil to
// disable that branch outright.
func New(geocoder geocode.Client, parcels *wfs.ParcelLookup, zoning *wfs.ZoningLookup, img *imagery.Resolver) *Resolver {
	return &Resolver{
		geocoder: geocoder,
		parcels:  parcels,
		zoning:   zoning,
		imagery:  img,
		ttls:     DefaultTTLs(),
	}
}

// WithStore enables the advisory lookup cache and resolution history.
func (r *Resolver) WithStore(s *store.Store, ttls TTLs) *Resolver {
	r.store = s
	r.ttls = ttls
	return r
}

// Resolve runs the full workflow for one address. The geocode phase is
// the only hard dependency: a failed or unmatched geocode short-circuits
// the run, while every downstream lookup degrades to a nil section.
func (r *Resolver) Resolve(ctx context.Context, address string, opts Options) (*Report, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrEmptyAddress
	}

	log := zap.L().With(zap.String("address", address))
	start := time.Now()

	geo, err := r.cachedGeocode(ctx, address)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: geocode")
	}

	report := &Report{
		Address:    address,
		Geocode:    geo,
		ResolvedAt: time.Now().UTC(),
	}
	if !geo.Matched {
		log.Info("pipeline: address did not geocode")
		return report, nil
	}

	pt := geomath.Point{Lat: geo.Latitude, Lon: geo.Longitude}

	// The three downstream branches depend only on the point, never on
	// each other.
	g, gCtx := errgroup.WithContext(ctx)

	if r.parcels != nil && !opts.SkipParcel {
		g.Go(func() error {
			report.Parcel = r.cachedParcel(gCtx, pt)
			return nil
		})
	}
	if r.zoning != nil && !opts.SkipZoning {
		g.Go(func() error {
			report.Zoning = r.cachedZoning(gCtx, pt)
			return nil
		})
	}
	if r.imagery != nil && !opts.SkipImagery {
		g.Go(func() error {
			report.Imagery = r.imagery.Resolve(gCtx, pt, opts.PreferPano, opts.ImageryMode)
			return nil
		})
	}

	// Branches never return errors; Wait only propagates context
	// cancellation through gCtx.
	_ = g.Wait()

	if report.Zoning != nil {
		report.RegulationURL = wfs.RegulationURL(report.Zoning.Properties)
	}

	r.saveHistory(ctx, report, log)

	log.Info("pipeline: resolution complete",
		zap.Bool("matched", geo.Matched),
		zap.Bool("parcel", report.Parcel != nil),
		zap.Bool("zoning", report.Zoning != nil),
		zap.Bool("imagery", report.Imagery != nil),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	return report, nil
}

func (r *Resolver) cachedGeocode(ctx context.Context, address string) (*geocode.Result, error) {
	key := store.CacheKey(address)
	var cached geocode.Result
	if r.loadCached(ctx, store.KindGeocode, key, &cached) {
		return &cached, nil
	}

	res, err := r.geocoder.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}
	r.storeCached(ctx, store.KindGeocode, key, res, r.ttls.Geocode)
	return res, nil
}

func (r *Resolver) cachedParcel(ctx context.Context, pt geomath.Point) *wfs.Parcel {
	key := pointKey(pt)
	var cached wfs.Parcel
	if r.loadCached(ctx, store.KindParcel, key, &cached) {
		return &cached
	}

	p := r.parcels.Find(ctx, pt)
	if p != nil {
		r.storeCached(ctx, store.KindParcel, key, p, r.ttls.Parcel)
	}
	return p
}

func (r *Resolver) cachedZoning(ctx context.Context, pt geomath.Point) *wfs.Zoning {
	key := pointKey(pt)
	var cached wfs.Zoning
	if r.loadCached(ctx, store.KindZoning, key, &cached) {
		return &cached
	}

	z := r.zoning.Find(ctx, pt)
	if z != nil {
		r.storeCached(ctx, store.KindZoning, key, z, r.ttls.Zoning)
	}
	return z
}

// pointKey collapses coordinates to ~1m precision so repeat lookups of
// the same address hit the same cache row.
func pointKey(pt geomath.Point) string {
	return store.CacheKey(
		strconv.FormatFloat(pt.Lat, 'f', 5, 64),
		strconv.FormatFloat(pt.Lon, 'f', 5, 64),
	)
}

func (r *Resolver) loadCached(ctx context.Context, kind, key string, out any) bool {
	if r.store == nil {
		return false
	}
	payload, ok := r.store.GetCached(ctx, kind, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		zap.L().Warn("pipeline: discarding unreadable cache entry",
			zap.String("kind", kind), zap.Error(err))
		return false
	}
	return true
}

func (r *Resolver) storeCached(ctx context.Context, kind, key string, val any, ttl time.Duration) {
	if r.store == nil || ttl <= 0 {
		return
	}
	payload, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := r.store.PutCached(ctx, kind, key, payload, ttl); err != nil {
		zap.L().Warn("pipeline: cache write failed",
			zap.String("kind", kind), zap.Error(err))
	}
}

func (r *Resolver) saveHistory(ctx context.Context, report *Report, log *zap.Logger) {
	if r.store == nil {
		return
	}
	payload, err := json.Marshal(report)
	if err != nil {
		log.Warn("pipeline: failed to encode report", zap.Error(err))
		return
	}
	if _, err := r.store.SaveResolution(ctx, report.Address, payload); err != nil {
		log.Warn("pipeline: failed to save resolution", zap.Error(err))
	}
}
