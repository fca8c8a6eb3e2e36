// Package slo compares rolling reliability actuals against per-team
// targets. Violations are flagged for observability and reporting only;
// they never trigger remediation on their own.
package slo

import (
	"time"

	"vigil/internal/health"
	"vigil/internal/policy"
)

const (
	// DefaultCapacity bounds the assessment window used for actuals.
	DefaultCapacity = 120
	// maxRecoveries bounds the recovery-duration history behind MTTR.
	maxRecoveries = 32
)

type sample struct {
	at        time.Time
	status    health.Status
	errorRate float64
	hasRate   bool
}

// Record is the rolling SLI snapshot for one team.
type Record struct {
	TeamID       string
	Availability float64
	ErrorRate    float64
	MTTR         time.Duration

	AvailabilityMet bool
	ErrorRateMet    bool
	MTTRMet         bool
}

// Evaluator accumulates one team's assessment outcomes. Not self-locking.
type Evaluator struct {
	capacity int

	samples       []sample
	criticalSince time.Time
	inCritical    bool
	recoveries    []time.Duration
}

// New returns an Evaluator with the default window.
func New() *Evaluator {
	return &Evaluator{capacity: DefaultCapacity}
}

// Observe feeds one assessment outcome. errorRate is the aggregated metric
// source error rate; hasRate is false when the metrics source was
// unavailable for the cycle.
func (e *Evaluator) Observe(status health.Status, errorRate float64, hasRate bool, now time.Time) {
	e.samples = append(e.samples, sample{at: now, status: status, errorRate: errorRate, hasRate: hasRate})
	if len(e.samples) > e.capacity {
		e.samples = e.samples[len(e.samples)-e.capacity:]
	}

	critical := status == health.StatusCritical
	switch {
	case critical && !e.inCritical:
		e.inCritical = true
		e.criticalSince = now
	case !critical && e.inCritical:
		e.inCritical = false
		e.recoveries = append(e.recoveries, now.Sub(e.criticalSince))
		if len(e.recoveries) > maxRecoveries {
			e.recoveries = e.recoveries[len(e.recoveries)-maxRecoveries:]
		}
	}
}

// Report computes the current actuals and compliance flags against targets.
func (e *Evaluator) Report(teamID string, targets policy.SLITargets) Record {
	rec := Record{TeamID: teamID}

	if n := len(e.samples); n > 0 {
		nonCritical := 0
		var rateSum float64
		rated := 0
		for _, s := range e.samples {
			if s.status != health.StatusCritical {
				nonCritical++
			}
			if s.hasRate {
				rateSum += s.errorRate
				rated++
			}
		}
		rec.Availability = float64(nonCritical) / float64(n)
		if rated > 0 {
			rec.ErrorRate = rateSum / float64(rated)
		}
	}

	if len(e.recoveries) > 0 {
		var sum time.Duration
		for _, r := range e.recoveries {
			sum += r
		}
		rec.MTTR = sum / time.Duration(len(e.recoveries))
	}

	rec.AvailabilityMet = rec.Availability >= targets.Availability
	rec.ErrorRateMet = rec.ErrorRate <= targets.ErrorRate
	mttrTarget := time.Duration(targets.MTTRMinutes * float64(time.Minute))
	rec.MTTRMet = mttrTarget <= 0 || rec.MTTR <= mttrTarget

	return rec
}
