// Package escalate decides when and how to remediate a critical team,
// walking an ordered ladder of actions with safety constraints.
//
// The ladder never skips a level, resets to the first level after a
// confirmed recovery, and its final level only notifies humans.
package escalate

import (
	"errors"
	"fmt"
	"time"

	"vigil/internal/check"
	"vigil/internal/health"
	"vigil/internal/policy"
)

// ErrSafetyViolation marks remediation blocked by a safety check. The
// escalation level is left unchanged.
var ErrSafetyViolation = errors.New("remediation blocked by safety policy")

// notifyThrottle limits how often the notify-only level re-alerts for the
// same sustained condition.
const notifyThrottle = 15 * time.Minute

// restartBudgetWindow is the sliding window for the restart-rate budget.
const restartBudgetWindow = time.Hour

// Level is the escalation severity, L1 (gentlest) through L4 (notify only).
type Level uint8

const (
	L1 Level = iota + 1
	L2
	L3
	L4
)

func (l Level) String() string {
	if l < L1 || l > L4 {
		return "unknown_level"
	}
	return fmt.Sprintf("L%d", uint8(l))
}

// Suppression reasons carried on non-dispatch decisions. Every one of them
// must be surfaced as an observable signal by the caller.
const (
	ReasonHealthy         = "not_critical"
	ReasonHealingDisabled = "healing_disabled"
	ReasonBreakerOpen     = "circuit_breaker_open"
	ReasonFlapping        = "flapping"
	ReasonInFlight        = "remediation_in_flight"
	ReasonThrottled       = "notify_throttled"
	ReasonMinInstances    = "min_healthy_instances"
	ReasonRestartBudget   = "restart_budget_exhausted"
	ReasonOutsideHours    = "outside_business_hours"
	ReasonClockUntrusted  = "clock_untrusted"
)

// Decision is the outcome of one escalation evaluation.
type Decision struct {
	Dispatch bool
	Action   string // policy action name when Dispatch
	Level    Level
	Target   string // environment-switch target, when applicable
	Reason   string // suppression reason when !Dispatch
}

// Conditions carries the cycle state the controller needs to decide.
type Conditions struct {
	Status           health.Status
	BreakerAllows    bool
	FlapSuppressed   bool
	HealthyInstances int
	ClockTrusted     bool
	Now              time.Time

	// DryRun evaluates the decision without committing to a dispatch:
	// no in-flight mark, no restart budget charge, no notify throttle.
	DryRun bool
}

// Controller is one team's escalation state machine. Not self-locking:
// the owning team state guards it. Remediation calls themselves run
// outside the lock through the engine's serialized dispatch queue.
type Controller struct {
	pol policy.TeamPolicy

	levelIdx       int
	attempts       int
	inFlight       bool
	pendingSuccess bool
	lastNotify     time.Time
	restartsInHour []time.Time
}

// New returns a Controller at L1 for the given team policy.
func New(pol policy.TeamPolicy) *Controller {
	check.Assert(len(pol.Healing.Actions) > 0, "escalate.New: policy has no actions")
	return &Controller{pol: pol}
}

// UpdatePolicy swaps the policy on reload without losing ladder state.
// If the ladder shrank below the current level, the level is clamped.
func (c *Controller) UpdatePolicy(pol policy.TeamPolicy) {
	c.pol = pol
	if c.levelIdx >= len(pol.Healing.Actions) {
		c.levelIdx = len(pol.Healing.Actions) - 1
	}
}

// Level returns the current escalation level.
func (c *Controller) Level() Level { return Level(c.levelIdx + 1) }

// Attempts returns the failed or ineffective attempts at the current level.
func (c *Controller) Attempts() int { return c.attempts }

// Action returns the current level's policy action name.
func (c *Controller) Action() string { return c.pol.Healing.Actions[c.levelIdx] }

// Decide evaluates one assessment outcome and returns whether to dispatch
// the current level's action. A returned error always wraps
// ErrSafetyViolation and carries the matching suppression reason in the
// decision.
func (c *Controller) Decide(cond Conditions) (Decision, error) {
	if cond.Status != health.StatusCritical {
		// Recovery ends the episode whether an action caused it or the
		// team cleared on its own (e.g. while the breaker held dispatch).
		// Either way the next incident starts back at L1.
		if c.levelIdx != 0 || c.attempts != 0 || c.pendingSuccess {
			c.reset()
		}
		return Decision{Reason: ReasonHealthy, Level: c.Level()}, nil
	}

	// A successful action that did not clear the condition was ineffective.
	if c.pendingSuccess {
		c.pendingSuccess = false
		c.recordFailedAttempt()
	}

	level := c.Level()
	if !c.pol.Healing.Enabled {
		return Decision{Reason: ReasonHealingDisabled, Level: level}, nil
	}
	if !cond.BreakerAllows {
		return Decision{Reason: ReasonBreakerOpen, Level: level}, nil
	}
	if cond.FlapSuppressed {
		return Decision{Reason: ReasonFlapping, Level: level}, nil
	}
	if c.inFlight {
		return Decision{Reason: ReasonInFlight, Level: level}, nil
	}

	action := c.Action()
	if action == policy.ActionNotify {
		// Final level: never an infrastructure action.
		if cond.Now.Sub(c.lastNotify) < notifyThrottle {
			return Decision{Reason: ReasonThrottled, Level: level}, nil
		}
		if !cond.DryRun {
			c.lastNotify = cond.Now
		}
		return Decision{Dispatch: true, Action: action, Level: level}, nil
	}

	if reason := c.safetyCheck(cond); reason != "" {
		return Decision{Reason: reason, Level: level},
			fmt.Errorf("%w: %s for team %q", ErrSafetyViolation, reason, c.pol.TeamID)
	}

	d := Decision{Dispatch: true, Action: action, Level: level}
	if action == policy.ActionEnvironmentSwitch {
		d.Target = otherEnvironment(c.pol.ActiveEnvironment)
	}

	if !cond.DryRun {
		c.inFlight = true
		c.restartsInHour = append(c.restartsInHour, cond.Now)
	}
	return d, nil
}

// RecordOutcome reports the result of a dispatched action. A success is
// held pending until a subsequent non-critical assessment confirms it; a
// failure counts against the level's attempt budget.
func (c *Controller) RecordOutcome(success bool, now time.Time) {
	check.Assert(c.inFlight, "escalate.RecordOutcome: no remediation in flight")
	c.inFlight = false
	if success {
		c.pendingSuccess = true
		if c.Action() == policy.ActionEnvironmentSwitch {
			c.pol.ActiveEnvironment = otherEnvironment(c.pol.ActiveEnvironment)
		}
		return
	}
	c.recordFailedAttempt()
}

// ActiveEnvironment returns the environment the controller believes is
// live, tracking completed switches.
func (c *Controller) ActiveEnvironment() string { return c.pol.ActiveEnvironment }

func (c *Controller) recordFailedAttempt() {
	c.attempts++
	if c.attempts >= c.pol.Healing.MaxAttempts {
		c.advance()
	}
}

// advance moves one level up the ladder, never skipping and never past
// the final level.
func (c *Controller) advance() {
	if c.levelIdx < len(c.pol.Healing.Actions)-1 {
		c.levelIdx++
		c.attempts = 0
	}
}

func (c *Controller) reset() {
	c.levelIdx = 0
	c.attempts = 0
	c.pendingSuccess = false
}

func (c *Controller) safetyCheck(cond Conditions) string {
	if cond.HealthyInstances < c.pol.Healing.MinHealthyInstances {
		return ReasonMinInstances
	}

	cutoff := cond.Now.Add(-restartBudgetWindow)
	recent := c.restartsInHour[:0]
	for _, t := range c.restartsInHour {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	c.restartsInHour = recent
	if len(recent) >= c.pol.Healing.MaxRestartsPerHour {
		return ReasonRestartBudget
	}

	if bh := c.pol.Healing.BusinessHours; bh.Enabled {
		if !cond.ClockTrusted {
			return ReasonClockUntrusted
		}
		if bh.WeekdaysOnly {
			if wd := cond.Now.Weekday(); wd == time.Saturday || wd == time.Sunday {
				return ReasonOutsideHours
			}
		}
		if h := cond.Now.Hour(); h < bh.StartHour || h >= bh.EndHour {
			return ReasonOutsideHours
		}
	}
	return ""
}

func otherEnvironment(env string) string {
	if env == "green" {
		return "blue"
	}
	return "green"
}
