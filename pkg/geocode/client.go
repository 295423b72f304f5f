// Package geocode resolves organization addresses to coordinates using a
// fixed cascade of providers: Nominatim and ArcGIS as the free tier, Google
// Geocoding as the paid tier when an API key is configured.
package geocode

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/brightline-research/orggeo/internal/resilience"
)

// AddressInput represents an address to geocode. Field values are carried
// as-is from the source record; the organization name is not part of the
// geocodable text.
type AddressInput struct {
	Street  string
	City    string
	State   string
	ZipCode string
}

// Coordinate is a WGS84 point returned by a provider.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude  float64
	Longitude float64
	Method    string // e.g. "Free Service (Full)", "Google Maps (Simplified)"
	Matched   bool
}

// Provider is a single geocoding backend.
type Provider interface {
	// Name uniquely identifies the provider for pacing and logs.
	Name() string

	// Resolve geocodes one line of address text. A nil Coordinate with a
	// nil error means the service answered and found no match.
	Resolve(ctx context.Context, text string) (*Coordinate, error)

	// Available reports whether the provider is configured for use.
	Available() bool
}

// Tier is an ordered group of providers sharing one method label. Providers
// within a tier are interchangeable: the first one to answer wins.
type Tier struct {
	Label     string
	Providers []Provider
}

// Tier labels as they appear in the Geocoding_Method output column.
const (
	TierFree = "Free Service"
	TierPaid = "Google Maps"
)

// Option configures the cascade.
type Option func(*Cascade)

// WithGoogleAPIKey enables the Google Geocoding API as the paid tier.
func WithGoogleAPIKey(key string) Option {
	return func(c *Cascade) {
		c.googleKey = key
	}
}

// WithHTTPClient sets a custom HTTP client for all provider requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Cascade) {
		c.httpClient = hc
	}
}

// WithRelaxedHTTPClient sets the client used to reissue a free-tier call
// after a TLS certificate verification failure.
func WithRelaxedHTTPClient(hc *http.Client) Option {
	return func(c *Cascade) {
		c.relaxedClient = hc
	}
}

// WithUserAgent sets the User-Agent header sent to providers that require
// an identifying agent (Nominatim).
func WithUserAgent(ua string) Option {
	return func(c *Cascade) {
		c.userAgent = ua
	}
}

// WithDelay sets the minimum spacing between consecutive calls to the same
// provider. Zero disables pacing.
func WithDelay(d time.Duration) Option {
	return func(c *Cascade) {
		c.delay = d
	}
}

// WithTimeout sets the per-call HTTP timeout for provider requests.
func WithTimeout(d time.Duration) Option {
	return func(c *Cascade) {
		c.timeout = d
	}
}

// WithRetryConfig overrides the per-provider retry budget.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *Cascade) {
		c.retry = cfg
	}
}

// WithSimplifier overrides the address simplifier, e.g. with patterns
// loaded from a file.
func WithSimplifier(s *Simplifier) Option {
	return func(c *Cascade) {
		c.simplifier = s
	}
}

// New assembles the standard cascade. The free tier is always present;
// the paid tier is included only when a Google API key is configured.
func New(opts ...Option) *Cascade {
	c := &Cascade{
		timeout:    15 * time.Second,
		delay:      time.Second,
		userAgent:  "organization_geocoder_v1.0",
		retry:      cascadeRetryConfig(),
		simplifier: NewSimplifier(),
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	if c.relaxedClient == nil {
		c.relaxedClient = &http.Client{
			Timeout: c.timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			},
		}
	}
	if c.pacer == nil {
		c.pacer = NewPacer(c.delay)
	}
	if c.rateLimitPause == 0 {
		c.rateLimitPause = 2 * c.delay
		if c.rateLimitPause < 2*time.Second {
			c.rateLimitPause = 2 * time.Second
		}
	}

	free := Tier{Label: TierFree, Providers: []Provider{
		NewNominatim(c.httpClient, c.relaxedClient, c.pacer, c.userAgent),
		NewArcGIS(c.httpClient, c.relaxedClient, c.pacer),
	}}
	c.tiers = []Tier{free}

	paid := NewGoogle(c.httpClient, c.pacer, c.googleKey)
	if paid.Available() {
		c.tiers = append(c.tiers, Tier{Label: TierPaid, Providers: []Provider{paid}})
	}

	return c
}

// cascadeRetryConfig is the per-provider attempt budget. Jitter is off so
// that pacing, not randomness, governs call spacing.
func cascadeRetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0,
	}
}

// PaidTierConfigured reports whether the cascade includes the paid tier.
func (c *Cascade) PaidTierConfigured() bool {
	for _, t := range c.tiers {
		if t.Label == TierPaid {
			return true
		}
	}
	return false
}

// sleepCtx blocks for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// doWithTLSFallback issues req on the strict client and, if the failure is
// a certificate verification error, reissues it once on the relaxed client.
// Provider requests are bodyless GETs, so a clone is safe to resend.
func doWithTLSFallback(strict, relaxed *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := strict.Do(req)
	if err == nil || relaxed == nil || !isCertError(err) {
		return resp, err
	}

	zap.L().Warn("tls verification failed, retrying without verification",
		zap.String("host", req.URL.Host),
		zap.Error(err),
	)
	return relaxed.Do(req.Clone(req.Context()))
}

// isCertError reports whether err stems from TLS certificate verification.
func isCertError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	if errors.As(err, &verifyErr) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	var hostname x509.HostnameError
	var invalid x509.CertificateInvalidError
	return errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostname) ||
		errors.As(err, &invalid)
}
