package geocode

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/brightline-research/orggeo/internal/resilience"
)

// Cascade tries (tier, variant) strategies in a fixed order until one
// yields a coordinate. The order is free tier before paid tier, and within
// each tier the full address before the simplified one, so a record never
// costs money when a free answer exists.
type Cascade struct {
	tiers          []Tier
	pacer          *Pacer
	simplifier     *Simplifier
	retry          resilience.RetryConfig
	rateLimitPause time.Duration
	sleep          func(ctx context.Context, d time.Duration) error

	// construction knobs consumed by New
	httpClient    *http.Client
	relaxedClient *http.Client
	googleKey     string
	userAgent     string
	delay         time.Duration
	timeout       time.Duration
}

// Geocode resolves addr by trying each strategy in order. Retries never
// cross a strategy boundary, and an exhausted cascade is not an error: the
// result is simply unmatched. Errors are reserved for cancellation.
func (c *Cascade) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	variants := c.simplifier.Variants(addr)
	if len(variants) == 0 {
		return &Result{Matched: false}, nil
	}

	for _, tier := range c.tiers {
		for _, variant := range variants {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "geocode: cascade interrupted")
			}

			coord := c.tryTier(ctx, tier, variant)
			if coord == nil {
				continue
			}
			return &Result{
				Latitude:  coord.Lat,
				Longitude: coord.Lon,
				Method:    tier.Label + " (" + variant.Label + ")",
				Matched:   true,
			}, nil
		}
	}

	if ctx.Err() != nil {
		return nil, eris.Wrap(ctx.Err(), "geocode: cascade interrupted")
	}
	return &Result{Matched: false}, nil
}

// tryTier runs one strategy: a single query text against each provider in
// the tier until one answers with a usable coordinate.
func (c *Cascade) tryTier(ctx context.Context, tier Tier, variant Variant) *Coordinate {
	for _, p := range tier.Providers {
		if !p.Available() {
			continue
		}

		coord, err := c.tryProvider(ctx, p, variant.Text)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			zap.L().Debug("cascade: provider failed, trying next",
				zap.String("provider", p.Name()),
				zap.String("variant", variant.Label),
				zap.Error(err),
			)
			continue
		}
		if coord == nil {
			zap.L().Debug("cascade: no match",
				zap.String("provider", p.Name()),
				zap.String("variant", variant.Label),
			)
			continue
		}
		if !validCoordinate(coord) {
			zap.L().Warn("cascade: coordinate out of range, discarding",
				zap.String("provider", p.Name()),
				zap.Float64("lat", coord.Lat),
				zap.Float64("lon", coord.Lon),
			)
			continue
		}
		return coord
	}
	return nil
}

// tryProvider calls p with one query text, retrying transient failures
// within a bounded attempt budget. Rate-limit pushback earns a longer
// pause than the exponential schedule. Hard failures and no-match answers
// end the attempts immediately.
func (c *Cascade) tryProvider(ctx context.Context, p Provider, text string) (*Coordinate, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		coord, err := p.Resolve(ctx, text)
		if err == nil {
			return coord, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, lastErr
		}
		if !resilience.IsTransient(err) {
			return nil, lastErr
		}
		if attempt == c.retry.MaxAttempts {
			break
		}

		pause := resilience.BackoffDelay(attempt-1, c.retry)
		if resilience.IsRateLimited(err) && c.rateLimitPause > pause {
			pause = c.rateLimitPause
		}
		zap.L().Warn("cascade: transient failure, backing off",
			zap.String("provider", p.Name()),
			zap.Int("attempt", attempt),
			zap.Duration("pause", pause),
			zap.Error(err),
		)
		if sleepErr := c.sleep(ctx, pause); sleepErr != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// validCoordinate checks WGS84 ranges. Out-of-range values count as a
// non-match rather than a usable answer.
func validCoordinate(c *Coordinate) bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}
