package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/brightline-research/orggeo/internal/resilience"
	"github.com/brightline-research/orggeo/pkg/nws"
)

// RegionOutcome classifies one region lookup.
type RegionOutcome int

const (
	// RegionNone means no lookup was attempted for the row.
	RegionNone RegionOutcome = iota
	// RegionFound means the coordinate resolved to a CWA code.
	RegionFound
	// RegionOutside means the coordinate has no responsible NWS office.
	RegionOutside
	// RegionUnavailable means the lookup failed; a later run may retry.
	RegionUnavailable
)

// regionCachePrecision is the number of decimal places kept in region
// cache keys. Two places is roughly 1.1 km of latitude: co-located
// organizations share a cache entry while staying far below the size of
// any CWA region.
const regionCachePrecision = 2

func regionCacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.*f,%.*f", regionCachePrecision, lat, regionCachePrecision, lon)
}

type cachedRegion struct {
	code    string
	outcome RegionOutcome
}

// RegionEnricher resolves CWA region codes for coordinates. Resolved
// outcomes, including OutsideCoverage, are cached for the run so nearby
// rows share one lookup.
type RegionEnricher struct {
	client nws.Client
	cache  map[string]cachedRegion
	retry  resilience.RetryConfig
}

// NewRegionEnricher creates an enricher over the given weather.gov client.
func NewRegionEnricher(client nws.Client) *RegionEnricher {
	return &RegionEnricher{
		client: client,
		cache:  make(map[string]cachedRegion),
		retry: resilience.RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: time.Second,
			MaxBackoff:     5 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0,
			OnRetry:        resilience.RetryLogger("weather.gov", "points"),
		},
	}
}

// Lookup resolves the CWA region for a coordinate. Unavailable outcomes
// are not cached, so an incremental rerun can retry the row.
func (e *RegionEnricher) Lookup(ctx context.Context, lat, lon float64) (string, RegionOutcome) {
	key := regionCacheKey(lat, lon)
	if hit, ok := e.cache[key]; ok {
		return hit.code, hit.outcome
	}

	code, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (string, error) {
		return e.client.CWA(ctx, lat, lon)
	})
	switch {
	case err == nil:
		e.cache[key] = cachedRegion{code: code, outcome: RegionFound}
		return code, RegionFound
	case errors.Is(err, nws.ErrOutsideCoverage):
		e.cache[key] = cachedRegion{outcome: RegionOutside}
		return "", RegionOutside
	default:
		zap.L().Warn("region lookup unavailable",
			zap.Float64("lat", lat),
			zap.Float64("lon", lon),
			zap.Error(err),
		)
		return "", RegionUnavailable
	}
}
