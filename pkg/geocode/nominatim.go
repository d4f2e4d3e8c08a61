package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ToobaSh/urbanviz-cli/internal/resilience"
)

// nominatimPlace is one entry of the Nominatim search response. The
// coordinate fields arrive as strings.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode implements Client. Transport and parse failures are retried
// under the client's policy; an empty match list is a definitive
// no-match and is returned immediately.
func (g *geocoder) Geocode(ctx context.Context, address string) (*Result, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, eris.New("geocode: empty address")
	}

	result, err := resilience.DoVal(ctx, withLogger(g.retry), func(ctx context.Context) (*Result, error) {
		return g.search(ctx, address)
	})
	if err != nil {
		// Retry budget exhausted. The address may still be resolvable
		// later; report unmatched rather than failing the resolution.
		zap.L().Debug("geocode: search failed after retries",
			zap.String("address", address),
			zap.Error(err),
		)
		return &Result{Matched: false}, nil
	}
	return result, nil
}

// search issues one Nominatim request for the single best match.
func (g *geocoder) search(ctx context.Context, address string) (*Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	params := url.Values{
		"q":      {address},
		"format": {"json"},
		"limit":  {"1"},
	}

	reqURL := g.baseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "geocode: request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: search returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "geocode: read body"), 0)
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "geocode: parse response"), 0)
	}

	// Empty list is a definitive no-match, never retried.
	if len(places) == 0 {
		return &Result{Matched: false}, nil
	}

	best := places[0]
	lat, err := strconv.ParseFloat(best.Lat, 64)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "geocode: parse lat"), 0)
	}
	lon, err := strconv.ParseFloat(best.Lon, 64)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "geocode: parse lon"), 0)
	}

	label := best.DisplayName
	if label == "" {
		label = address
	}

	return &Result{
		Latitude:  lat,
		Longitude: lon,
		Label:     label,
		Matched:   true,
	}, nil
}

func withLogger(p resilience.Policy) resilience.Policy {
	if p.OnRetry == nil {
		p.OnRetry = resilience.RetryLogger("nominatim", "search")
	}
	return p
}
