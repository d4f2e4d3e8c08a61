package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ToobaSh/urbanviz-cli/internal/geomath"
	"github.com/ToobaSh/urbanviz-cli/internal/imagery"
	"github.com/ToobaSh/urbanviz-cli/internal/store"
	"github.com/ToobaSh/urbanviz-cli/internal/wfs"
	"github.com/ToobaSh/urbanviz-cli/pkg/geocode"
)

type stubGeocoder struct {
	calls int32
	res   *geocode.Result
	err   error
}

func (s *stubGeocoder) Geocode(_ context.Context, _ string) (*geocode.Result, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	cp := *s.res
	return &cp, nil
}

type stubImageryProvider struct {
	calls int32
	sel   *imagery.Selection
}

func (s *stubImageryProvider) Name() string    { return "stub" }
func (s *stubImageryProvider) Available() bool { return true }

func (s *stubImageryProvider) Resolve(_ context.Context, _ geomath.Point, _ bool) *imagery.Selection {
	atomic.AddInt32(&s.calls, 1)
	return s.sel
}

func matchedGeocoder() *stubGeocoder {
	return &stubGeocoder{res: &geocode.Result{
		Latitude:  48.8584,
		Longitude: 2.2945,
		Label:     "Tour Eiffel, Paris",
		Matched:   true,
	}}
}

const parcelFixture = `{
	"type": "FeatureCollection",
	"features": [{
		"type": "Feature",
		"geometry": {"type": "Polygon", "coordinates": [[[2.2940, 48.8580], [2.2950, 48.8580], [2.2950, 48.8590], [2.2940, 48.8580]]]},
		"properties": {"contenance": 420, "idu": "751070000A0001"}
	}]
}`

const zoningFixture = `{
	"type": "FeatureCollection",
	"features": [{
		"type": "Feature",
		"geometry": {"type": "Polygon", "coordinates": [[[2.2940, 48.8580], [2.2950, 48.8580], [2.2950, 48.8590], [2.2940, 48.8580]]]},
		"properties": {"libelle": "UV", "libelong": "Zone urbaine verte", "gpu_doc_id": "doc-123", "nomfic": "reglement.pdf"}
	}]
}`

// newWFSServer serves parcel and zoning fixtures keyed on the requested
// layer, counting hits per layer.
func newWFSServer(t *testing.T, parcelHits, zoningHits *int32) *wfs.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("TYPENAMES") {
		case "CADASTRALPARCELS.PARCELLAIRE_EXPRESS:parcelle":
			atomic.AddInt32(parcelHits, 1)
			_, _ = w.Write([]byte(parcelFixture))
		case "wfs_du:zone_urba":
			atomic.AddInt32(zoningHits, 1)
			_, _ = w.Write([]byte(zoningFixture))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return wfs.NewClient(wfs.WithBaseURL(srv.URL), wfs.WithRateLimit(1000))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestResolveEmptyAddress(t *testing.T) {
	r := New(matchedGeocoder(), nil, nil, nil)

	_, err := r.Resolve(context.Background(), "   ", Options{})
	assert.ErrorIs(t, err, ErrEmptyAddress)
}

func TestResolveUnmatchedGeocodeShortCircuits(t *testing.T) {
	var parcelHits, zoningHits int32
	client := newWFSServer(t, &parcelHits, &zoningHits)
	geocoder := &stubGeocoder{res: &geocode.Result{Matched: false}}

	r := New(geocoder, wfs.NewParcelLookup(client), wfs.NewZoningLookup(client), nil)

	report, err := r.Resolve(context.Background(), "nowhere at all", Options{})
	require.NoError(t, err)
	assert.False(t, report.Geocode.Matched)
	assert.Nil(t, report.Parcel)
	assert.Nil(t, report.Zoning)
	assert.Equal(t, int32(0), atomic.LoadInt32(&parcelHits))
	assert.Equal(t, int32(0), atomic.LoadInt32(&zoningHits))
}

func TestResolveFullReport(t *testing.T) {
	var parcelHits, zoningHits int32
	client := newWFSServer(t, &parcelHits, &zoningHits)
	img := &stubImageryProvider{sel: &imagery.Selection{Provider: "stub", EmbedURL: "https://example.com/embed"}}

	r := New(
		matchedGeocoder(),
		wfs.NewParcelLookup(client),
		wfs.NewZoningLookup(client),
		imagery.NewResolver(img),
	)

	report, err := r.Resolve(context.Background(), "Tour Eiffel, Paris", Options{PreferPano: true})
	require.NoError(t, err)

	assert.True(t, report.Geocode.Matched)
	require.NotNil(t, report.Parcel)
	assert.InDelta(t, 420.0, report.Parcel.AreaM2, 0.001)
	require.NotNil(t, report.Zoning)
	assert.Equal(t, "UV", report.Zoning.ZoneCode)
	assert.Equal(t, "Zone urbaine verte", report.Zoning.ZoneLabel)
	assert.Equal(t, "https://www.geoportail-urbanisme.gouv.fr/api/document/doc-123/download-file/reglement.pdf", report.RegulationURL)
	require.NotNil(t, report.Imagery)
	assert.Equal(t, "stub", report.Imagery.Provider)
	assert.False(t, report.ResolvedAt.IsZero())
}

func TestResolveDownstreamFailureDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream broken", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	client := wfs.NewClient(wfs.WithBaseURL(srv.URL), wfs.WithRateLimit(1000))

	r := New(matchedGeocoder(), wfs.NewParcelLookup(client), wfs.NewZoningLookup(client), nil)

	report, err := r.Resolve(context.Background(), "Tour Eiffel, Paris", Options{})
	require.NoError(t, err)
	assert.Nil(t, report.Parcel)
	assert.Nil(t, report.Zoning)
	assert.Empty(t, report.RegulationURL)
}

func TestResolveSkipFlags(t *testing.T) {
	var parcelHits, zoningHits int32
	client := newWFSServer(t, &parcelHits, &zoningHits)
	img := &stubImageryProvider{sel: &imagery.Selection{Provider: "stub"}}

	r := New(
		matchedGeocoder(),
		wfs.NewParcelLookup(client),
		wfs.NewZoningLookup(client),
		imagery.NewResolver(img),
	)

	report, err := r.Resolve(context.Background(), "Tour Eiffel, Paris", Options{
		SkipParcel:  true,
		SkipImagery: true,
	})
	require.NoError(t, err)
	assert.Nil(t, report.Parcel)
	assert.NotNil(t, report.Zoning)
	assert.Nil(t, report.Imagery)
	assert.Equal(t, int32(0), atomic.LoadInt32(&parcelHits))
	assert.Equal(t, int32(0), atomic.LoadInt32(&img.calls))
}

func TestResolveCacheSuppressesRepeatLookups(t *testing.T) {
	var parcelHits, zoningHits int32
	client := newWFSServer(t, &parcelHits, &zoningHits)
	geocoder := matchedGeocoder()

	r := New(geocoder, wfs.NewParcelLookup(client), wfs.NewZoningLookup(client), nil).
		WithStore(newTestStore(t), DefaultTTLs())

	first, err := r.Resolve(context.Background(), "Tour Eiffel, Paris", Options{})
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "Tour Eiffel, Paris", Options{})
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&geocoder.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&parcelHits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&zoningHits))
	assert.Equal(t, first.Geocode, second.Geocode)
	assert.Equal(t, first.Zoning.ZoneCode, second.Zoning.ZoneCode)
	assert.Equal(t, first.RegulationURL, second.RegulationURL)
}

func TestResolveZeroTTLBypassesCache(t *testing.T) {
	var parcelHits, zoningHits int32
	client := newWFSServer(t, &parcelHits, &zoningHits)
	geocoder := matchedGeocoder()

	r := New(geocoder, wfs.NewParcelLookup(client), wfs.NewZoningLookup(client), nil).
		WithStore(newTestStore(t), TTLs{})

	for i := 0; i < 2; i++ {
		_, err := r.Resolve(context.Background(), "Tour Eiffel, Paris", Options{})
		require.NoError(t, err)
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(&geocoder.calls))
	assert.Equal(t, int32(2), atomic.LoadInt32(&parcelHits))
}

func TestResolveSavesHistory(t *testing.T) {
	var parcelHits, zoningHits int32
	client := newWFSServer(t, &parcelHits, &zoningHits)
	s := newTestStore(t)

	r := New(matchedGeocoder(), wfs.NewParcelLookup(client), wfs.NewZoningLookup(client), nil).
		WithStore(s, DefaultTTLs())

	_, err := r.Resolve(context.Background(), "Tour Eiffel, Paris", Options{})
	require.NoError(t, err)

	rows, err := s.ListResolutions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Tour Eiffel, Paris", rows[0].Address)
	assert.Contains(t, string(rows[0].Report), `"zone_code":"UV"`)
}

func TestDefaultTTLs(t *testing.T) {
	ttls := DefaultTTLs()
	assert.Equal(t, time.Hour, ttls.Geocode)
	assert.Equal(t, 30*time.Minute, ttls.Parcel)
	assert.Equal(t, 10*time.Minute, ttls.Zoning)
}
