package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/brightline-research/orggeo/internal/resilience"
)

const nominatimSearchURL = "https://nominatim.openstreetmap.org/search"

// Nominatim geocodes via the OpenStreetMap Nominatim service. It is the
// primary free-tier provider. Nominatim requires an identifying User-Agent
// and rejects anonymous clients.
type Nominatim struct {
	httpClient    *http.Client
	relaxedClient *http.Client
	pacer         *Pacer
	userAgent     string
}

// NewNominatim creates a Nominatim provider. The relaxed client is used to
// reissue a call once after a TLS certificate verification failure; pass
// nil to disable the fallback.
func NewNominatim(hc, relaxed *http.Client, pacer *Pacer, userAgent string) *Nominatim {
	return &Nominatim{
		httpClient:    hc,
		relaxedClient: relaxed,
		pacer:         pacer,
		userAgent:     userAgent,
	}
}

// Name implements Provider.
func (n *Nominatim) Name() string { return "nominatim" }

// Available implements Provider.
func (n *Nominatim) Available() bool { return true }

// nominatimPlace is one entry of the Nominatim search response. Coordinates
// arrive as JSON strings.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Resolve implements Provider.
func (n *Nominatim) Resolve(ctx context.Context, text string) (*Coordinate, error) {
	if err := n.pacer.Wait(ctx, n.Name()); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim pacing")
	}

	params := url.Values{
		"q":      {text},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}

	reqURL := nominatimSearchURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := doWithTLSFallback(n.httpClient, n.relaxedClient, req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}

	if len(places) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim parse lat %q", places[0].Lat)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim parse lon %q", places[0].Lon)
	}

	return &Coordinate{Lat: lat, Lon: lon}, nil
}
