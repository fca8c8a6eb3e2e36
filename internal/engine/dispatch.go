package engine

import (
	"context"
	"fmt"
	"time"

	"vigil/internal/check"
	"vigil/internal/escalate"
	"vigil/internal/notify"
	"vigil/internal/policy"
	"vigil/internal/telemetry"
)

// remediationTimeout bounds one dispatched action end to end.
const remediationTimeout = 60 * time.Second

type dispatchJob struct {
	action string
	level  escalate.Level
	target string
}

// enqueue hands a decided action to the team's serialized dispatch queue.
// The controller's in-flight guard guarantees capacity.
func (e *Engine) enqueue(ts *teamState, teamID string, d escalate.Decision) {
	job := dispatchJob{action: d.Action, level: d.Level, target: d.Target}
	select {
	case ts.dispatch <- job:
	default:
		check.Assertf(false, "dispatch queue full for team %q", teamID)
		e.log.Error("dispatch queue full, dropping remediation", "team", teamID, "action", d.Action)
	}
}

// runDispatcher is the per-team worker that executes remediation actions
// one at a time, guaranteeing at most one in-flight call per team.
func (e *Engine) runDispatcher(ctx context.Context, teamID string, ts *teamState) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-ts.dispatch:
			e.execute(ctx, teamID, ts, job)
		}
	}
}

func (e *Engine) execute(ctx context.Context, teamID string, ts *teamState, job dispatchJob) {
	e.log.Info("dispatching remediation", "team", teamID, "action", job.action, "level", job.level.String())

	op := telemetry.StartRemediation(ctx, teamID, job.action, job.level.String())
	callCtx, cancel := context.WithTimeout(op.Context(), remediationTimeout)

	var err error
	switch job.action {
	case policy.ActionGracefulRestart:
		err = e.deps.Remediator.Restart(callCtx, teamID, "graceful")
	case policy.ActionContainerRestart:
		err = e.deps.Remediator.Restart(callCtx, teamID, "container")
	case policy.ActionEnvironmentSwitch:
		err = e.deps.Remediator.SwitchEnvironment(callCtx, teamID, job.target)
	default:
		err = fmt.Errorf("unknown remediation action %q", job.action)
	}
	cancel()
	op.End(err)

	now := e.deps.Clock.Now()
	success := err == nil

	ts.mu.Lock()
	ts.esc.RecordOutcome(success, now)
	ts.mu.Unlock()

	if e.deps.Recorder != nil {
		if perr := e.deps.Recorder.SaveAttempt(teamID, now, job.action, job.level.String(), success); perr != nil {
			e.log.Warn("persist healing attempt failed", "team", teamID, "err", perr)
		}
	}

	labels := map[string]string{"team": teamID, "action": job.action}
	e.deps.Sink.EmitMetric("vigil_remediation_success", labels, boolToFloat(success))
	e.deps.Sink.EmitAnnotation(
		fmt.Sprintf("remediation %s for %s at %s: %s", job.action, teamID, job.level, outcomeWord(success)),
		[]string{"remediation", teamID, job.action},
	)

	if err != nil {
		e.log.Warn("remediation failed", "team", teamID, "action", job.action, "err", err)
		msg := fmt.Sprintf("remediation %s for team %s failed at %s: %v", job.action, teamID, job.level, err)
		if nerr := e.deps.Notifier.Notify(ctx, "ops", notify.SeverityCritical, msg); nerr != nil {
			e.log.Warn("notify remediation failure failed", "team", teamID, "err", nerr)
		}
	}
}

func outcomeWord(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
