package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"vigil/internal/collect"
	"vigil/internal/escalate"
	"vigil/internal/health"
	"vigil/internal/health/score"
	"vigil/internal/health/slo"
	"vigil/internal/notify"
	"vigil/internal/policy"
)

// Assess runs one full assessment cycle for a team: fetch, score, update
// state machines, and decide on remediation. Cancelled cycles commit
// nothing.
func (e *Engine) Assess(ctx context.Context, teamID string) (health.Assessment, escalate.Decision, error) {
	ts, err := e.team(teamID)
	if err != nil {
		return health.Assessment{}, escalate.Decision{}, err
	}

	ts.mu.Lock()
	if ts.assessing {
		ts.mu.Unlock()
		return health.Assessment{}, escalate.Decision{}, fmt.Errorf("%w: team %q", ErrCycleInProgress, teamID)
	}
	ts.assessing = true
	pol := ts.pol
	prevSub := make(health.SubScores, len(ts.lastSub))
	for k, v := range ts.lastSub {
		prevSub[k] = v
	}
	ts.mu.Unlock()

	defer func() {
		ts.mu.Lock()
		ts.assessing = false
		ts.mu.Unlock()
	}()

	samples := e.collectAll(ctx, teamID)
	if ctx.Err() != nil {
		// Cancelled mid-cycle: do not commit partial state.
		return health.Assessment{}, escalate.Decision{}, ctx.Err()
	}

	sub, metricsSample := e.scoreSamples(teamID, pol, samples, prevSub)
	composite, status := e.scorer.Composite(sub, pol.Weights, pol.Tier)

	// Query instance health before taking the team lock; the lock must
	// never be held across an external call.
	healthyInstances := 0
	if status == health.StatusCritical && pol.Healing.Enabled && e.deps.Remediator != nil {
		healthyInstances = e.queryInstances(ctx, teamID)
	}

	ts.mu.Lock()
	now := e.deps.Clock.Now()
	if !now.After(ts.lastAssessedAt) {
		// Assessment timestamps are strictly increasing per team.
		now = ts.lastAssessedAt.Add(time.Nanosecond)
	}

	assessment := health.Assessment{
		TeamID:    teamID,
		Timestamp: now,
		SubScores: sub,
		Composite: composite,
		Status:    status,
	}

	ts.breaker.Record(status, now)
	ts.flap.Record(status, now)
	ts.trend.Record(composite, now)

	errorRate := 0.0
	hasRate := metricsSample != nil
	if hasRate {
		errorRate = metricsSample.ErrorRate
	}
	ts.slo.Observe(status, errorRate, hasRate, now)

	decision, safetyErr := ts.esc.Decide(escalate.Conditions{
		Status:           status,
		BreakerAllows:    ts.breaker.AllowRemediation(),
		FlapSuppressed:   ts.flap.Suppressed(now),
		HealthyInstances: healthyInstances,
		ClockTrusted:     e.deps.ClockCheck.Status().Trusted(),
		Now:              now,
		DryRun:           e.deps.DryRun,
	})

	ts.lastAssessment = &assessment
	ts.lastSub = sub
	ts.lastAssessedAt = now

	breakerState := ts.breaker.State()
	breakerFailures := ts.breaker.ConsecutiveFailures()
	breakerOpenedAt := ts.breaker.OpenedAt()
	flapping := ts.flap.IsFlapping()
	sloRec := ts.slo.Report(teamID, pol.SLITargets)
	ts.mu.Unlock()

	if decision.Dispatch && !e.deps.DryRun {
		if decision.Action == policy.ActionNotify {
			e.notifyEscalation(ctx, teamID, decision, composite)
		} else {
			e.enqueue(ts, teamID, decision)
		}
	}

	// A dry-run cycle must not touch shared state: a one-shot command
	// writing its fresh breaker snapshot would clobber the daemon's.
	if !e.deps.DryRun {
		e.persist(assessment, breakerState.String(), breakerFailures, breakerOpenedAt)
	}
	e.emitAssessment(assessment, breakerState.String(), decision, flapping, sloRec)
	e.signalSuppression(ctx, teamID, assessment, decision, safetyErr, flapping)

	return assessment, decision, nil
}

// collectAll fans out to every collector in parallel, each under its own
// timeout. A failed collector yields no sample for its source.
func (e *Engine) collectAll(ctx context.Context, teamID string) map[health.Source]health.Sample {
	var mu sync.Mutex
	samples := make(map[health.Source]health.Sample, len(e.deps.Collectors))

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range e.deps.Collectors {
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, e.deps.FetchTimeout)
			defer cancel()

			sample, err := c.Fetch(fetchCtx, teamID, e.deps.Window)
			if err != nil {
				if errors.Is(err, collect.ErrSourceUnavailable) {
					e.log.Debug("telemetry source unavailable", "team", teamID, "source", c.Source(), "err", err)
				} else {
					e.log.Warn("collector failed", "team", teamID, "source", c.Source(), "err", err)
				}
				return nil // one source failing never fails the assessment
			}
			mu.Lock()
			samples[c.Source()] = sample
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return samples
}

// scoreSamples converts raw samples to sub-scores. Malformed samples fall
// back to the previous sub-score with a penalty; sources with neither a
// sample nor history stay unavailable.
func (e *Engine) scoreSamples(teamID string, pol policy.TeamPolicy, samples map[health.Source]health.Sample, prev health.SubScores) (health.SubScores, *health.MetricsSample) {
	sub := make(health.SubScores, len(samples))
	var metricsSample *health.MetricsSample

	for src, raw := range samples {
		var (
			val float64
			err error
		)
		switch s := raw.(type) {
		case health.MetricsSample:
			val, err = e.scorer.Metrics(s, pol.Thresholds)
			if err == nil {
				metricsSample = &s
			}
		case health.LogsSample:
			val, err = e.scorer.Logs(s)
		case health.ProbeSample:
			val, err = e.scorer.Probe(s)
		default:
			err = fmt.Errorf("%w: unexpected sample type %T", score.ErrBadSample, raw)
		}

		if err != nil {
			prevVal, ok := prev[src]
			if !ok {
				e.log.Warn("sample rejected with no previous sub-score", "team", teamID, "source", src, "err", err)
				continue
			}
			val = prevVal - score.FallbackPenalty
			if val < 0 {
				val = 0
			}
			e.log.Warn("sample rejected, using penalized previous sub-score", "team", teamID, "source", src, "score", val, "err", err)
			e.deps.Sink.EmitAnnotation(
				fmt.Sprintf("scoring error for %s/%s, fell back to previous sub-score", teamID, src),
				[]string{"scoring_error", teamID},
			)
		}
		sub[src] = val
	}
	return sub, metricsSample
}

func (e *Engine) queryInstances(ctx context.Context, teamID string) int {
	queryCtx, cancel := context.WithTimeout(ctx, e.deps.FetchTimeout)
	defer cancel()

	n, err := e.deps.Remediator.HealthyInstances(queryCtx, teamID)
	if err != nil {
		// Unknown instance health blocks remediation via the
		// min-instances guard rather than acting blind.
		e.log.Warn("instance health query failed", "team", teamID, "err", err)
		return 0
	}
	return n
}

func (e *Engine) persist(a health.Assessment, breakerState string, failures int, openedAt time.Time) {
	if e.deps.Recorder == nil {
		return
	}
	if err := e.deps.Recorder.SaveAssessment(a); err != nil {
		e.log.Warn("persist assessment failed", "team", a.TeamID, "err", err)
	}
	if err := e.deps.Recorder.SaveBreakerState(a.TeamID, breakerState, failures, openedAt); err != nil {
		e.log.Warn("persist breaker state failed", "team", a.TeamID, "err", err)
	}
}

func (e *Engine) emitAssessment(a health.Assessment, breakerState string, decision escalate.Decision, flapping bool, sloRec slo.Record) {
	team := map[string]string{"team": a.TeamID}
	e.deps.Sink.EmitMetric("vigil_composite_score", team, a.Composite)
	e.deps.Sink.EmitMetric("vigil_status", team, float64(a.Status))
	for src, v := range a.SubScores {
		e.deps.Sink.EmitMetric("vigil_sub_score", map[string]string{"team": a.TeamID, "source": string(src)}, v)
	}
	e.deps.Sink.EmitMetric("vigil_escalation_level", team, float64(decision.Level))
	e.deps.Sink.EmitMetric("vigil_flapping", team, boolToFloat(flapping))
	e.deps.Sink.EmitMetric("vigil_breaker_open", team, boolToFloat(breakerState == "open"))

	e.deps.Sink.EmitMetric("vigil_sli_availability", team, sloRec.Availability)
	e.deps.Sink.EmitMetric("vigil_sli_error_rate", team, sloRec.ErrorRate)
	e.deps.Sink.EmitMetric("vigil_sli_mttr_seconds", team, sloRec.MTTR.Seconds())
	if !sloRec.AvailabilityMet || !sloRec.ErrorRateMet || !sloRec.MTTRMet {
		e.deps.Sink.EmitMetric("vigil_slo_violated", team, 1)
	} else {
		e.deps.Sink.EmitMetric("vigil_slo_violated", team, 0)
	}
}

// signalSuppression guarantees that every suppressed or blocked action is
// observable: a metric always, an annotation for suppressions, and a
// notification for safety violations and flapping.
func (e *Engine) signalSuppression(ctx context.Context, teamID string, a health.Assessment, decision escalate.Decision, safetyErr error, flapping bool) {
	if flapping {
		// Distinct flapping signal instead of a status alert.
		e.deps.Sink.EmitAnnotation(
			fmt.Sprintf("team %s is flapping, escalation suppressed", teamID),
			[]string{"flapping", teamID},
		)
	}

	if a.Status != health.StatusCritical || decision.Dispatch {
		return
	}

	labels := map[string]string{"team": teamID, "reason": decision.Reason}
	e.deps.Sink.EmitMetric("vigil_remediation_suppressed", labels, 1)

	if safetyErr != nil {
		e.deps.Sink.EmitAnnotation(
			fmt.Sprintf("remediation for %s blocked: %s", teamID, decision.Reason),
			[]string{"safety_violation", teamID},
		)
		msg := fmt.Sprintf("remediation for team %s blocked by safety policy (%s), composite %.1f",
			teamID, decision.Reason, a.Composite)
		if err := e.deps.Notifier.Notify(ctx, "ops", notify.SeverityWarning, msg); err != nil {
			e.log.Warn("notify safety violation failed", "team", teamID, "err", err)
		}
		return
	}

	if decision.Reason != escalate.ReasonInFlight && decision.Reason != escalate.ReasonThrottled {
		e.deps.Sink.EmitAnnotation(
			fmt.Sprintf("remediation for %s suppressed: %s", teamID, decision.Reason),
			[]string{"suppressed", teamID, decision.Reason},
		)
	}
}

func (e *Engine) notifyEscalation(ctx context.Context, teamID string, decision escalate.Decision, composite float64) {
	msg := fmt.Sprintf("team %s requires manual intervention (%s, composite %.1f): automatic remediation exhausted",
		teamID, strings.ToLower(decision.Level.String()), composite)
	if err := e.deps.Notifier.Notify(ctx, "oncall", notify.SeverityCritical, msg); err != nil {
		e.log.Warn("notify manual intervention failed", "team", teamID, "err", err)
	}
	e.deps.Sink.EmitMetric("vigil_manual_intervention", map[string]string{"team": teamID}, 1)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
