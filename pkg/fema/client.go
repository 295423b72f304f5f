// Package fema provides a client for the OpenFEMA disaster declarations
// API (DisasterDeclarationsSummaries v2).
package fema

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/brightline-research/orggeo/internal/resilience"
)

// Client defines the OpenFEMA operations.
type Client interface {
	// DeclarationsByState fetches the most recent disaster declarations
	// for a two-letter state code, newest first.
	DeclarationsByState(ctx context.Context, state string) ([]Declaration, error)
}

// Declaration is one disaster declaration summary record.
type Declaration struct {
	DisasterNumber       int        `json:"disasterNumber"`
	DeclarationType      string     `json:"declarationType"`
	DeclarationTitle     string     `json:"declarationTitle"`
	IncidentType         string     `json:"incidentType"`
	DeclarationDate      time.Time  `json:"declarationDate"`
	State                string     `json:"state"`
	DesignatedArea       string     `json:"designatedArea"`
	DisasterCloseoutDate *time.Time `json:"disasterCloseoutDate"`
}

// WebURL returns the public fema.gov page for the disaster.
func (d Declaration) WebURL() string {
	return fmt.Sprintf("https://www.fema.gov/disaster/%d", d.DisasterNumber)
}

// Option configures the FEMA client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTop sets how many declarations to request per state.
func WithTop(n int) Option {
	return func(c *httpClient) {
		c.top = n
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
	baseURL string
	top     int
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an OpenFEMA client with a politeness limiter of one
// request per 500ms.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://www.fema.gov/api/open/v2/DisasterDeclarationsSummaries",
		top:     50,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type declarationsResponse struct {
	DisasterDeclarationsSummaries []Declaration `json:"DisasterDeclarationsSummaries"`
}

func (c *httpClient) DeclarationsByState(ctx context.Context, state string) ([]Declaration, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fema: pacing")
	}

	params := url.Values{
		"$filter":  {fmt.Sprintf("state eq '%s'", strings.ToUpper(state))},
		"$orderby": {"declarationDate desc"},
		"$top":     {strconv.Itoa(c.top)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "fema: build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "fema: request for %s", state)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("fema: returned status %d for %s", resp.StatusCode, state)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var parsed declarationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, eris.Wrap(err, "fema: decode response")
	}
	return parsed.DisasterDeclarationsSummaries, nil
}
