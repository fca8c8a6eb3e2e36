package collect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"vigil/internal/health"
)

// Guarded wraps a Collector in a circuit breaker so a dead telemetry
// backend fails fast instead of eating the fetch timeout every cycle.
// An open breaker surfaces as ErrSourceUnavailable, which the scorer
// already handles by renormalizing weights.
type Guarded struct {
	inner Collector
	cb    *gobreaker.CircuitBreaker
}

// Guard wraps c. The breaker trips after a 60% failure ratio over at
// least 3 requests and probes again after 30 seconds.
func Guard(c Collector) *Guarded {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        fmt.Sprintf("collector-%s", c.Source()),
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && ratio >= 0.6
		},
	})
	return &Guarded{inner: c, cb: cb}
}

func (g *Guarded) Source() health.Source { return g.inner.Source() }

func (g *Guarded) Fetch(ctx context.Context, teamID string, window time.Duration) (health.Sample, error) {
	result, err := g.cb.Execute(func() (any, error) {
		return g.inner.Fetch(ctx, teamID, window)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: source breaker open: %v", ErrSourceUnavailable, err)
		}
		return nil, err
	}
	return result.(health.Sample), nil
}
