// Package collect fetches normalized telemetry samples for a team from one
// data source each: metric series, log pattern counts, and active probes.
//
// Collectors are independent: one failing or timing out degrades its
// sub-score to "unavailable" and never fails the whole assessment.
package collect

import (
	"context"
	"errors"
	"time"

	"vigil/internal/health"
)

// ErrSourceUnavailable marks a collector failure or timeout. The scorer
// excludes the source and renormalizes the remaining weights.
var ErrSourceUnavailable = errors.New("telemetry source unavailable")

// Collector fetches one source's sample for a team over a lookback window.
//
// Production: Prometheus, Loki, and Prober adapters in this package.
// Testing: adapter/fake.Collector.
type Collector interface {
	Source() health.Source
	Fetch(ctx context.Context, teamID string, window time.Duration) (health.Sample, error)
}
