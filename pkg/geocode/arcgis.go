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

const arcgisFindURL = "https://geocode.arcgis.com/arcgis/rest/services/World/GeocodeServer/findAddressCandidates"

// ArcGIS geocodes via the Esri World Geocoding service. It is the
// second free-tier provider, consulted when Nominatim has no answer.
type ArcGIS struct {
	httpClient    *http.Client
	relaxedClient *http.Client
	pacer         *Pacer
}

// NewArcGIS creates an ArcGIS provider.
func NewArcGIS(hc, relaxed *http.Client, pacer *Pacer) *ArcGIS {
	return &ArcGIS{
		httpClient:    hc,
		relaxedClient: relaxed,
		pacer:         pacer,
	}
}

// Name implements Provider.
func (a *ArcGIS) Name() string { return "arcgis" }

// Available implements Provider.
func (a *ArcGIS) Available() bool { return true }

// arcgisResponse is the findAddressCandidates JSON response. The service
// reports failures as an error object inside a 200 response.
type arcgisResponse struct {
	Candidates []struct {
		Address  string `json:"address"`
		Location struct {
			X float64 `json:"x"` // longitude
			Y float64 `json:"y"` // latitude
		} `json:"location"`
		Score float64 `json:"score"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Resolve implements Provider.
func (a *ArcGIS) Resolve(ctx context.Context, text string) (*Coordinate, error) {
	if err := a.pacer.Wait(ctx, a.Name()); err != nil {
		return nil, eris.Wrap(err, "geocode: arcgis pacing")
	}

	params := url.Values{
		"f":            {"json"},
		"singleLine":   {text},
		"maxLocations": {"1"},
	}

	reqURL := arcgisFindURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: arcgis build request")
	}

	resp, err := doWithTLSFallback(a.httpClient, a.relaxedClient, req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: arcgis request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: arcgis returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: arcgis read body")
	}

	var arcResp arcgisResponse
	if err := json.Unmarshal(body, &arcResp); err != nil {
		return nil, eris.Wrap(err, "geocode: arcgis parse response")
	}

	if arcResp.Error != nil {
		err := eris.Errorf("geocode: arcgis error %d: %s", arcResp.Error.Code, arcResp.Error.Message)
		if resilience.IsTransientHTTPStatus(arcResp.Error.Code) {
			return nil, resilience.NewTransientError(err, arcResp.Error.Code)
		}
		return nil, err
	}

	if len(arcResp.Candidates) == 0 {
		return nil, nil
	}

	loc := arcResp.Candidates[0].Location
	return &Coordinate{Lat: loc.Y, Lon: loc.X}, nil
}
