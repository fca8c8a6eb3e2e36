// Package score turns raw telemetry samples into 0-100 sub-scores and
// combines them into one composite score and status tier.
//
// All functions are pure: identical inputs always produce identical
// scores. Deduction schedules, tier bands, and tier factors are policy
// defaults, not hard law; callers may override any of them.
package score

import (
	"errors"
	"fmt"
	"math"

	"vigil/internal/check"
	"vigil/internal/health"
	"vigil/internal/policy"
)

// ErrBadSample marks a malformed or out-of-range telemetry sample.
// Callers recover by falling back to the previous sub-score with
// FallbackPenalty applied.
var ErrBadSample = errors.New("malformed telemetry sample")

// FallbackPenalty is subtracted from the previous sub-score when a fresh
// sample is rejected as malformed.
const FallbackPenalty = 5

// Deductions is the point schedule applied for threshold violations.
type Deductions struct {
	// Metric source buckets, each the maximum deduction for its violation.
	ErrorRate    float64
	ResponseTime float64
	Availability float64
	Resources    float64

	// Log source, per pattern match.
	PerWarning  float64
	PerError    float64
	PerCritical float64
}

// DefaultDeductions is the stock schedule.
var DefaultDeductions = Deductions{
	ErrorRate:    25,
	ResponseTime: 20,
	Availability: 25,
	Resources:    40,
	PerWarning:   1,
	PerError:     3,
	PerCritical:  10,
}

// Bands are the composite-score cutoffs for status tiers:
// >= Healthy is healthy, >= Degraded is degraded, below is critical.
type Bands struct {
	Healthy  float64
	Degraded float64
}

// DefaultBands is the stock banding.
var DefaultBands = Bands{Healthy: 90, Degraded: 70}

// TierFactors adjust the composite per team tier. Production teams can be
// scored more strictly (factor below 1), testing teams more leniently.
type TierFactors struct {
	Production float64
	Testing    float64
}

// DefaultTierFactors leaves production neutral and relaxes testing slightly.
var DefaultTierFactors = TierFactors{Production: 1.0, Testing: 1.05}

// Scorer computes sub-scores and composites with a fixed schedule.
type Scorer struct {
	Deductions Deductions
	Bands      Bands
	Factors    TierFactors
}

// New returns a Scorer with the default schedule.
func New() *Scorer {
	return &Scorer{
		Deductions: DefaultDeductions,
		Bands:      DefaultBands,
		Factors:    DefaultTierFactors,
	}
}

// Metrics scores a metric-series sample against the team thresholds.
func (s *Scorer) Metrics(m health.MetricsSample, th policy.Thresholds) (float64, error) {
	if badFraction(m.ErrorRate) || badFraction(m.Availability) ||
		badPercent(m.CPUPercent) || badPercent(m.MemoryPercent) || m.ResponseTimeP95 < 0 {
		return 0, fmt.Errorf("%w: metrics %+v", ErrBadSample, m)
	}

	score := 100.0
	score -= scaled(m.ErrorRate, th.ErrorRateMax, s.Deductions.ErrorRate)
	score -= scaled(float64(m.ResponseTimeP95), float64(th.ResponseTimeP95Max()), s.Deductions.ResponseTime)

	// Availability below the floor is treated as a critical violation:
	// the whole bucket is deducted at once.
	if m.Availability < th.AvailabilityMin {
		score -= s.Deductions.Availability
	}

	half := s.Deductions.Resources / 2
	resource := scaled(m.CPUPercent, th.CPUMaxPercent, half) + scaled(m.MemoryPercent, th.MemoryMaxPercent, half)
	if resource > s.Deductions.Resources {
		resource = s.Deductions.Resources
	}
	score -= resource

	return clamp(score), nil
}

// Logs scores a log-pattern sample. Each severity deducts per match,
// floored at zero.
func (s *Scorer) Logs(l health.LogsSample) (float64, error) {
	if l.Warnings < 0 || l.Errors < 0 || l.Criticals < 0 {
		return 0, fmt.Errorf("%w: logs %+v", ErrBadSample, l)
	}
	score := 100.0
	score -= float64(l.Warnings) * s.Deductions.PerWarning
	score -= float64(l.Errors) * s.Deductions.PerError
	score -= float64(l.Criticals) * s.Deductions.PerCritical
	return clamp(score), nil
}

// Probe scores an active health-check result: binary pass/fail.
func (s *Scorer) Probe(p health.ProbeSample) (float64, error) {
	if p.Duration < 0 {
		return 0, fmt.Errorf("%w: probe %+v", ErrBadSample, p)
	}
	if p.TimedOut || p.ExitCode != 0 {
		return 0, nil
	}
	return 100, nil
}

// Composite combines sub-scores using the team weights, renormalized over
// the sources actually present in sub, then applies the tier factor and
// derives the status band. It returns StatusUnknown when no source is
// available.
func (s *Scorer) Composite(sub health.SubScores, w policy.Weights, tier policy.Tier) (float64, health.Status) {
	weightOf := map[health.Source]int{
		health.SourceMetrics:      w.Metrics,
		health.SourceLogs:         w.Logs,
		health.SourceHealthChecks: w.HealthChecks,
	}

	var weighted, total float64
	for _, src := range health.Sources {
		v, ok := sub[src]
		if !ok {
			continue
		}
		weighted += v * float64(weightOf[src])
		total += float64(weightOf[src])
	}
	if total == 0 {
		return 0, health.StatusUnknown
	}

	composite := weighted / total
	composite *= s.factor(tier)
	composite = clamp(composite)
	check.Assertf(composite >= 0 && composite <= 100, "composite %g out of range", composite)

	return composite, s.Band(composite)
}

// Band maps a composite score to its status tier.
func (s *Scorer) Band(composite float64) health.Status {
	switch {
	case composite >= s.Bands.Healthy:
		return health.StatusHealthy
	case composite >= s.Bands.Degraded:
		return health.StatusDegraded
	default:
		return health.StatusCritical
	}
}

func (s *Scorer) factor(tier policy.Tier) float64 {
	if tier == policy.TierTesting {
		return s.Factors.Testing
	}
	return s.Factors.Production
}

// scaled deducts proportionally to how far actual exceeds limit, up to
// ceiling. An actual at twice the limit earns the full ceiling. A zero
// limit disables the check.
func scaled(actual, limit, ceiling float64) float64 {
	if limit <= 0 || actual <= limit {
		return 0
	}
	excess := (actual - limit) / limit
	if excess > 1 {
		excess = 1
	}
	return ceiling * excess
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func badFraction(v float64) bool { return math.IsNaN(v) || v < 0 || v > 1 }
func badPercent(v float64) bool  { return math.IsNaN(v) || v < 0 || v > 100 }
