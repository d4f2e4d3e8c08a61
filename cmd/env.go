package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ToobaSh/urbanviz-cli/internal/imagery"
	"github.com/ToobaSh/urbanviz-cli/internal/pipeline"
	"github.com/ToobaSh/urbanviz-cli/internal/resilience"
	"github.com/ToobaSh/urbanviz-cli/internal/store"
	"github.com/ToobaSh/urbanviz-cli/internal/wfs"
	"github.com/ToobaSh/urbanviz-cli/pkg/geocode"
)

// initStore opens and migrates the SQLite cache, or returns nil when
// caching is disabled.
func initStore(ctx context.Context) (*store.Store, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	st, err := store.Open(cfg.Cache.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func buildGeocoder() geocode.Client {
	policy := resilience.DefaultPolicy()
	if cfg.Geocoder.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.Geocoder.MaxAttempts
	}
	if cfg.Geocoder.RetryDelaySecs > 0 {
		policy.Delay = time.Duration(cfg.Geocoder.RetryDelaySecs) * time.Second
	}

	return geocode.NewClient(
		geocode.WithBaseURL(cfg.Geocoder.BaseURL),
		geocode.WithUserAgent(cfg.Geocoder.UserAgent),
		geocode.WithRateLimit(cfg.Geocoder.RateLimit),
		geocode.WithRetryPolicy(policy),
	)
}

func buildWFSClient() *wfs.Client {
	return wfs.NewClient(wfs.WithBaseURL(cfg.WFS.BaseURL))
}

func buildParcelLookup(client *wfs.Client) *wfs.ParcelLookup {
	l := wfs.NewParcelLookup(client)
	if cfg.WFS.ParcelLayer != "" {
		l = l.WithLayer(cfg.WFS.ParcelLayer)
	}
	return l
}

func buildZoningLookup(client *wfs.Client) *wfs.ZoningLookup {
	l := wfs.NewZoningLookup(client)
	if cfg.WFS.ZoningLayer != "" {
		l = l.WithLayer(cfg.WFS.ZoningLayer)
	}
	return l
}

// buildImagery assembles the provider chain in fallback order.
// baseRadiusM overrides the configured search radius when positive.
func buildImagery(baseRadiusM int) *imagery.Resolver {
	if baseRadiusM <= 0 {
		baseRadiusM = cfg.Imagery.BaseRadiusM
	}
	mly := imagery.NewMapillary(cfg.Imagery.MapillaryToken,
		imagery.WithRadii(imagery.RadiiFromBase(float64(baseRadiusM))),
	)
	gsv := imagery.NewStreetView(cfg.Imagery.GoogleKey, cfg.Imagery.FOV)
	return imagery.NewResolver(mly, gsv)
}

// buildResolver wires the full workflow. st may be nil.
func buildResolver(st *store.Store) *pipeline.Resolver {
	client := buildWFSClient()
	r := pipeline.New(
		buildGeocoder(),
		buildParcelLookup(client),
		buildZoningLookup(client),
		buildImagery(resolveRadius),
	)
	if st != nil {
		r = r.WithStore(st, pipeline.TTLs{
			Geocode: time.Duration(cfg.Cache.GeocodeTTLMins) * time.Minute,
			Parcel:  time.Duration(cfg.Cache.ParcelTTLMins) * time.Minute,
			Zoning:  time.Duration(cfg.Cache.ZoningTTLMins) * time.Minute,
		})
	}
	return r
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
