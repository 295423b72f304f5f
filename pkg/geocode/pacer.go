package geocode

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces a minimum interval between consecutive calls to the same
// provider. Each provider name owns an independent clock, so pacing one
// service never delays another.
type Pacer struct {
	interval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewPacer creates a Pacer with the given per-provider interval. An
// interval of zero or less disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until the named provider's next call is permitted, or until
// ctx is done. The first call for a name is always immediate.
func (p *Pacer) Wait(ctx context.Context, name string) error {
	return p.limiter(name).Wait(ctx)
}

func (p *Pacer) limiter(name string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	lim, ok := p.limiters[name]
	if !ok {
		if p.interval <= 0 {
			lim = rate.NewLimiter(rate.Inf, 1)
		} else {
			lim = rate.NewLimiter(rate.Every(p.interval), 1)
		}
		p.limiters[name] = lim
	}
	return lim
}
