package imagery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "MLY|123|abc"

func newTestMapillary(srv *httptest.Server, radii ...float64) *Mapillary {
	opts := []MapillaryOption{
		WithMapillaryBaseURL(srv.URL),
		WithMapillaryHTTPClient(srv.Client()),
	}
	if len(radii) > 0 {
		opts = append(opts, WithRadii(radii))
	}
	return NewMapillary(testToken, opts...)
}

func imageJSON(id string, pano bool, lat, lon float64) string {
	return fmt.Sprintf(
		`{"id":%q,"is_pano":%t,"thumb_1024_url":"https://img/%s","captured_at":1623751200000,"computed_geometry":{"type":"Point","coordinates":[%v,%v]}}`,
		id, pano, id, lon, lat,
	)
}

func dataResponse(images ...string) string {
	return `{"data":[` + strings.Join(images, ",") + `]}`
}

func TestFindBest_ClosestTierWins(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		q := r.URL.Query()
		require.NotEmpty(t, q.Get("closeto"), "first tier must be the closest-images query")
		assert.Equal(t, testToken, q.Get("access_token"))
		assert.Equal(t, mapillaryFields, q.Get("fields"))
		assert.Equal(t, strconv.Itoa(closestLimit), q.Get("limit"))
		_, _ = io.WriteString(w, dataResponse(
			imageJSON("far", false, 48.8700, 2.3100),
			imageJSON("near", false, 48.8585, 2.2946),
		))
	}))
	defer srv.Close()

	m := newTestMapillary(srv)
	best := m.FindBest(context.Background(), queryPt, false)
	require.NotNil(t, best)
	assert.Equal(t, "near", best.ID)
	assert.Equal(t, int32(1), requests.Load())
	assert.Equal(t, "2021-06-15", best.CapturedAt)
}

func TestFindBest_TierEscalation(t *testing.T) {
	// Empty closeto, empty bbox tiers until the third radius.
	var bboxWidths []float64
	var closetoCalls, bboxCalls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("closeto") != "" {
			closetoCalls.Add(1)
			_, _ = io.WriteString(w, `{"data":[]}`)
			return
		}
		n := bboxCalls.Add(1)
		assert.Equal(t, strconv.Itoa(bboxLimit), q.Get("limit"))

		parts := strings.Split(q.Get("bbox"), ",")
		require.Len(t, parts, 4)
		minLon, _ := strconv.ParseFloat(parts[0], 64)
		maxLon, _ := strconv.ParseFloat(parts[2], 64)
		bboxWidths = append(bboxWidths, maxLon-minLon)

		if n < 3 {
			_, _ = io.WriteString(w, `{"data":[]}`)
			return
		}
		_, _ = io.WriteString(w, dataResponse(imageJSON("hit", false, 48.8600, 2.2990)))
	}))
	defer srv.Close()

	m := newTestMapillary(srv, 150, 300, 600, 1200)
	best := m.FindBest(context.Background(), queryPt, false)
	require.NotNil(t, best)
	assert.Equal(t, "hit", best.ID)

	assert.Equal(t, int32(1), closetoCalls.Load())
	assert.Equal(t, int32(3), bboxCalls.Load(), "stops at the first non-empty tier")
	require.Len(t, bboxWidths, 3)
	assert.Less(t, bboxWidths[0], bboxWidths[1], "radii escalate in increasing order")
	assert.Less(t, bboxWidths[1], bboxWidths[2])
}

func TestFindBest_PanoPreferredWithinTier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, dataResponse(
			imageJSON("flat-near", false, 48.8585, 2.2946),
			imageJSON("pano-far", true, 48.8650, 2.3050),
		))
	}))
	defer srv.Close()

	m := newTestMapillary(srv)
	best := m.FindBest(context.Background(), queryPt, true)
	require.NotNil(t, best)
	assert.Equal(t, "pano-far", best.ID, "a farther panorama beats a closer flat image")
}

func TestFindBest_NonPanoTierStillResolves(t *testing.T) {
	// A non-empty tier with no panorama resolves to its best flat image
	// instead of escalating.
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		_, _ = io.WriteString(w, dataResponse(imageJSON("flat", false, 48.8585, 2.2946)))
	}))
	defer srv.Close()

	m := newTestMapillary(srv)
	best := m.FindBest(context.Background(), queryPt, true)
	require.NotNil(t, best)
	assert.Equal(t, "flat", best.ID)
	assert.False(t, best.IsPano)
	assert.Equal(t, int32(1), requests.Load())
}

func TestFindBest_TierFailureAbsorbed(t *testing.T) {
	var bboxCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("closeto") != "" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if bboxCalls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, dataResponse(imageJSON("recovered", false, 48.8585, 2.2946)))
	}))
	defer srv.Close()

	m := newTestMapillary(srv, 150, 300)
	best := m.FindBest(context.Background(), queryPt, false)
	require.NotNil(t, best)
	assert.Equal(t, "recovered", best.ID)
}

func TestFindBest_AllTiersEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"data":[]}`)
	}))
	defer srv.Close()

	m := newTestMapillary(srv, 150, 300)
	assert.Nil(t, m.FindBest(context.Background(), queryPt, false))
}

func TestResolve_PanoRepassOnlyWhenFirstPassEmpty(t *testing.T) {
	// First full pass (closeto + 2 bbox tiers) returns nothing; the
	// re-pass without the pano preference then finds a flat image.
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if requests.Add(1) <= 3 {
			_, _ = io.WriteString(w, `{"data":[]}`)
			return
		}
		_, _ = io.WriteString(w, dataResponse(imageJSON("second-pass", false, 48.8585, 2.2946)))
	}))
	defer srv.Close()

	m := newTestMapillary(srv, 150, 300)
	sel := m.Resolve(context.Background(), queryPt, true)
	require.NotNil(t, sel)
	assert.Equal(t, "second-pass", sel.Candidate.ID)
	assert.Equal(t, int32(4), requests.Load(), "one full pass, then the re-pass's first tier")
	assert.Contains(t, sel.DeepLink, "pKey=second-pass")
}

func TestResolve_NoRepassWhenFlatImageSettled(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		_, _ = io.WriteString(w, dataResponse(imageJSON("flat", false, 48.8585, 2.2946)))
	}))
	defer srv.Close()

	m := newTestMapillary(srv, 150, 300)
	sel := m.Resolve(context.Background(), queryPt, true)
	require.NotNil(t, sel)
	assert.Equal(t, "flat", sel.Candidate.ID)
	assert.Equal(t, int32(1), requests.Load(), "settling for a flat image does not trigger the re-pass")
}

func TestMapillaryAvailable(t *testing.T) {
	assert.True(t, NewMapillary("MLY|1|x").Available())
	assert.False(t, NewMapillary("").Available())
	assert.False(t, NewMapillary("not-a-token").Available())
}

func TestRadiiFromBase(t *testing.T) {
	assert.Equal(t, []float64{150, 300, 600, 1200, 3000, 6000, 10000}, RadiiFromBase(150))
	assert.Equal(t, []float64{500, 1000, 600, 1200, 3000, 6000, 10000}, RadiiFromBase(500))
	assert.Equal(t, defaultRadiiM, RadiiFromBase(0))
}

func TestDeeplink(t *testing.T) {
	assert.Equal(t, "https://www.mapillary.com/app/?focus=photo&pKey=123abc", Deeplink("123abc"))
	assert.Empty(t, Deeplink(""))
}
