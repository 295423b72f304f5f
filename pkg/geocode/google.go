package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"

	"github.com/brightline-research/orggeo/internal/resilience"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// Google geocodes via the Google Maps Geocoding API. It is the paid tier
// and is only consulted after the free tier has been exhausted. Without an
// API key the provider reports itself unavailable and is never called.
type Google struct {
	httpClient *http.Client
	pacer      *Pacer
	apiKey     string
}

// NewGoogle creates a Google provider. An empty key leaves the provider
// unavailable.
func NewGoogle(hc *http.Client, pacer *Pacer, apiKey string) *Google {
	return &Google{
		httpClient: hc,
		pacer:      pacer,
		apiKey:     apiKey,
	}
}

// Name implements Provider.
func (g *Google) Name() string { return "google" }

// Available implements Provider.
func (g *Google) Available() bool { return g.apiKey != "" }

// googleGeocodeResponse is the JSON response from the Google Geocoding API.
type googleGeocodeResponse struct {
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// Resolve implements Provider.
func (g *Google) Resolve(ctx context.Context, text string) (*Coordinate, error) {
	if g.apiKey == "" {
		return nil, eris.New("geocode: google api key not configured")
	}

	if err := g.pacer.Wait(ctx, g.Name()); err != nil {
		return nil, eris.Wrap(err, "geocode: google pacing")
	}

	params := url.Values{
		"address": {text},
		"key":     {g.apiKey},
	}

	reqURL := googleGeocodeURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: google returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google read body")
	}

	var googleResp googleGeocodeResponse
	if err := json.Unmarshal(body, &googleResp); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}

	switch googleResp.Status {
	case "OK":
		// fall through to result handling
	case "ZERO_RESULTS":
		return nil, nil
	case "OVER_QUERY_LIMIT":
		return nil, resilience.NewTransientError(
			eris.New("geocode: google over query limit"), http.StatusTooManyRequests)
	case "UNKNOWN_ERROR":
		return nil, resilience.NewTransientError(
			eris.New("geocode: google unknown error"), http.StatusInternalServerError)
	default:
		return nil, eris.Errorf("geocode: google status %s: %s", googleResp.Status, googleResp.ErrorMessage)
	}

	if len(googleResp.Results) == 0 {
		return nil, nil
	}

	loc := googleResp.Results[0].Geometry.Location
	return &Coordinate{Lat: loc.Lat, Lon: loc.Lng}, nil
}
