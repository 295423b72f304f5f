// Package nws provides a client for the National Weather Service API
// (api.weather.gov): County Warning Area lookup for a coordinate and the
// nationwide active-alert feed.
package nws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/brightline-research/orggeo/internal/resilience"
)

// ErrOutsideCoverage indicates the coordinate has no responsible NWS
// office. api.weather.gov answers 404 for points outside its coverage.
var ErrOutsideCoverage = errors.New("nws: point outside NWS coverage")

// Client defines the weather.gov operations.
type Client interface {
	// CWA returns the three-letter County Warning Area code responsible
	// for the coordinate, or ErrOutsideCoverage.
	CWA(ctx context.Context, lat, lon float64) (string, error)
	// ActiveAlerts fetches all currently active alerts nationwide.
	ActiveAlerts(ctx context.Context) ([]Alert, error)
}

// Alert is one active alert from the NWS CAP feed.
type Alert struct {
	ID          string    `json:"id"`
	AreaDesc    string    `json:"areaDesc"`
	Geocode     Geocode   `json:"geocode"`
	Effective   time.Time `json:"effective"`
	Onset       time.Time `json:"onset"`
	Expires     time.Time `json:"expires"`
	Ends        time.Time `json:"ends"`
	Status      string    `json:"status"`
	MessageType string    `json:"messageType"`
	Category    string    `json:"category"`
	Severity    string    `json:"severity"`
	Certainty   string    `json:"certainty"`
	Urgency     string    `json:"urgency"`
	Event       string    `json:"event"`
	SenderName  string    `json:"senderName"`
	Headline    string    `json:"headline"`
	Description string    `json:"description"`
	Instruction string    `json:"instruction"`
	Response    string    `json:"response"`
	Web         string    `json:"web"`
}

// Geocode carries the zone codes an alert applies to.
type Geocode struct {
	UGC  []string `json:"UGC"`
	SAME []string `json:"SAME"`
}

// Option configures the NWS client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithUserAgent sets the identifying User-Agent header. api.weather.gov
// rejects anonymous clients.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithPacing sets the minimum spacing between requests. Zero disables
// pacing.
func WithPacing(interval time.Duration) Option {
	return func(c *httpClient) {
		if interval <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

type httpClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a weather.gov API client with a politeness limiter of
// one request per 500ms.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:   "https://api.weather.gov",
		userAgent: "organization_geocoder_v1.0",
		http:      &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type pointsResponse struct {
	Properties pointsProperties `json:"properties"`
}

type pointsProperties struct {
	CWA string `json:"cwa"`
}

func (c *httpClient) CWA(ctx context.Context, lat, lon float64) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "nws: points pacing")
	}

	reqURL := fmt.Sprintf("%s/points/%.4f,%.4f", c.baseURL, lat, lon)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "nws: build points request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "nws: points request")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrOutsideCoverage
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		err := eris.Errorf("nws: points returned status %d", resp.StatusCode)
		return "", resilience.NewTransientError(err, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", eris.Errorf("nws: points returned status %d", resp.StatusCode)
	}

	var parsed pointsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", eris.Wrap(err, "nws: decode points response")
	}

	// A 200 with no office assignment happens for some marine points.
	if parsed.Properties.CWA == "" {
		return "", ErrOutsideCoverage
	}
	return parsed.Properties.CWA, nil
}

type alertsResponse struct {
	Features []alertFeature `json:"features"`
}

type alertFeature struct {
	Properties Alert `json:"properties"`
}

func (c *httpClient) ActiveAlerts(ctx context.Context) ([]Alert, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "nws: alerts pacing")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/alerts/active", nil)
	if err != nil {
		return nil, eris.Wrap(err, "nws: build alerts request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "nws: alerts request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("nws: alerts returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var parsed alertsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, eris.Wrap(err, "nws: decode alerts response")
	}

	alerts := make([]Alert, 0, len(parsed.Features))
	for _, f := range parsed.Features {
		alerts = append(alerts, f.Properties)
	}
	return alerts, nil
}
