package fake

import (
	"context"
	"sync"
	"time"

	"vigil/internal/collect"
	"vigil/internal/health"
)

var _ collect.Collector = (*Collector)(nil)

// Collector serves queued samples for one telemetry source. When the queue
// runs out it keeps returning the last sample, so steady-state tests only
// need to queue once.
type Collector struct {
	CallRecorder

	source health.Source

	mu     sync.Mutex
	queue  []health.Sample
	last   health.Sample
	err    error
}

// NewCollector creates a Collector for the given source.
func NewCollector(source health.Source) *Collector {
	return &Collector{source: source}
}

// Source reports the telemetry source this collector serves.
func (c *Collector) Source() health.Source { return c.source }

// Queue appends samples to be returned by subsequent Fetch calls.
func (c *Collector) Queue(samples ...health.Sample) {
	c.mu.Lock()
	c.queue = append(c.queue, samples...)
	c.mu.Unlock()
}

// Fail makes every Fetch return err until Fail(nil) is called.
func (c *Collector) Fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

// Fetch returns the next queued sample, or the most recent one when the
// queue is empty.
func (c *Collector) Fetch(ctx context.Context, teamID string, window time.Duration) (health.Sample, error) {
	c.record("Fetch", teamID, window)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}
	if len(c.queue) > 0 {
		c.last = c.queue[0]
		c.queue = c.queue[1:]
	}
	if c.last == nil {
		return nil, collect.ErrSourceUnavailable
	}
	return c.last, nil
}
