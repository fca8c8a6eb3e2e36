// Package engine runs the per-team assessment cycles: collectors fan out
// for telemetry, the scorer folds samples into one composite score, the
// team's state machines update, and the escalation controller decides
// whether to dispatch remediation.
//
// All per-team state is owned by that team's entry in the engine map and
// mutated only under the team's lock. The lock is never held across an
// external call: collector fetches run before it, remediation runs behind
// a serialized per-team dispatch queue.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"vigil/internal/check"
	"vigil/internal/collect"
	"vigil/internal/escalate"
	"vigil/internal/health"
	"vigil/internal/health/breaker"
	"vigil/internal/health/flap"
	"vigil/internal/health/score"
	"vigil/internal/health/slo"
	"vigil/internal/health/trend"
	"vigil/internal/logging"
	"vigil/internal/policy"
)

var (
	// ErrUnknownTeam is returned for a team id absent from the policy set.
	ErrUnknownTeam = errors.New("unknown team")
	// ErrCycleInProgress is returned when an assessment for the team is
	// already running; overlapping cycles are skipped, not queued.
	ErrCycleInProgress = errors.New("assessment cycle already in progress")
)

// Deps are the engine's injected collaborators.
type Deps struct {
	Collectors []collect.Collector
	Remediator escalate.Remediator
	Notifier   escalate.Notifier
	Sink       Sink
	Recorder   Recorder
	ClockCheck ClockSource
	Clock      health.Clock

	// FetchTimeout bounds each collector call. Window is the telemetry
	// lookback passed to collectors.
	FetchTimeout time.Duration
	Window       time.Duration

	// DryRun assesses and reports decisions without dispatching
	// remediation or sending alerts. One-shot commands use this.
	DryRun bool
}

// Engine schedules and executes assessment cycles for all teams.
type Engine struct {
	mu      sync.Mutex
	teams   map[string]*teamState
	rootCtx context.Context

	scorer *score.Scorer
	deps   Deps
	log    *slog.Logger
}

type teamState struct {
	mu  sync.Mutex
	pol policy.TeamPolicy

	breaker *breaker.Breaker
	flap    *flap.Detector
	trend   *trend.Analyzer
	slo     *slo.Evaluator
	esc     *escalate.Controller

	lastAssessedAt time.Time
	lastSub        health.SubScores
	lastAssessment *health.Assessment
	assessing      bool

	dispatch chan dispatchJob
	cancel   context.CancelFunc
}

// New builds an engine for the given policy set. The root context bounds
// the lifetime of the per-team dispatch workers.
func New(ctx context.Context, set *policy.Set, deps Deps) *Engine {
	check.Assert(deps.Sink != nil, "engine.New: Sink must not be nil")
	check.Assert(deps.Notifier != nil, "engine.New: Notifier must not be nil")
	if deps.Clock == nil {
		deps.Clock = health.RealClock{}
	}
	if deps.ClockCheck == nil {
		deps.ClockCheck = staticClockSource{}
	}
	if deps.FetchTimeout <= 0 {
		deps.FetchTimeout = 10 * time.Second
	}
	if deps.Window <= 0 {
		deps.Window = 5 * time.Minute
	}

	e := &Engine{
		teams:   make(map[string]*teamState, len(set.Teams)),
		rootCtx: ctx,
		scorer:  score.New(),
		deps:    deps,
		log:     logging.Component("engine"),
	}
	for _, pol := range set.Teams {
		e.teams[pol.TeamID] = e.newTeamState(pol)
	}
	return e
}

func (e *Engine) newTeamState(pol policy.TeamPolicy) *teamState {
	ts := &teamState{
		pol:      pol,
		breaker:  breaker.New(pol.Breaker.FailureThreshold, pol.Breaker.OpenTimeout()),
		flap:     flap.New(),
		trend:    trend.New(),
		slo:      slo.New(),
		esc:      escalate.New(pol),
		dispatch: make(chan dispatchJob, 1),
	}
	workerCtx, cancel := context.WithCancel(e.rootCtx)
	ts.cancel = cancel
	go e.runDispatcher(workerCtx, pol.TeamID, ts)
	return ts
}

// TeamIDs returns the ids of all teams the engine currently tracks.
func (e *Engine) TeamIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.teams))
	for id := range e.teams {
		ids = append(ids, id)
	}
	return ids
}

func (e *Engine) team(id string) (*teamState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ts, ok := e.teams[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTeam, id)
	}
	return ts, nil
}

// Reload applies a new policy set. Teams whose policy is unchanged keep
// all in-memory state; changed teams are rebuilt; removed teams are
// dropped and their dispatch workers stopped.
func (e *Engine) Reload(set *policy.Set) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := make(map[string]struct{}, len(set.Teams))
	for _, pol := range set.Teams {
		seen[pol.TeamID] = struct{}{}
		existing, ok := e.teams[pol.TeamID]
		if !ok {
			e.teams[pol.TeamID] = e.newTeamState(pol)
			e.log.Info("team added", "team", pol.TeamID)
			continue
		}
		existing.mu.Lock()
		unchanged := reflect.DeepEqual(existing.pol, pol)
		existing.mu.Unlock()
		if unchanged {
			continue
		}
		existing.cancel()
		e.teams[pol.TeamID] = e.newTeamState(pol)
		e.log.Info("team policy changed, state rebuilt", "team", pol.TeamID)
	}

	for id, ts := range e.teams {
		if _, ok := seen[id]; !ok {
			ts.cancel()
			delete(e.teams, id)
			e.log.Info("team removed", "team", id)
		}
	}
}

// Snapshot is a point-in-time view of one team's state for reporting.
type Snapshot struct {
	TeamID         string
	Last           *health.Assessment
	BreakerState   breaker.State
	Failures       int
	OpenedAt       time.Time
	Level          escalate.Level
	Action         string
	Flapping       bool
	TrendDirection trend.Direction
	Confidence     float64
	SLO            slo.Record
}

// Snapshot returns the team's current state.
func (e *Engine) Snapshot(teamID string) (Snapshot, error) {
	ts, err := e.team(teamID)
	if err != nil {
		return Snapshot{}, err
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return Snapshot{
		TeamID:         teamID,
		Last:           ts.lastAssessment,
		BreakerState:   ts.breaker.State(),
		Failures:       ts.breaker.ConsecutiveFailures(),
		OpenedAt:       ts.breaker.OpenedAt(),
		Level:          ts.esc.Level(),
		Action:         ts.esc.Action(),
		Flapping:       ts.flap.IsFlapping(),
		TrendDirection: ts.trend.Direction(),
		Confidence:     ts.trend.Confidence(),
		SLO:            ts.slo.Report(teamID, ts.pol.SLITargets),
	}, nil
}
