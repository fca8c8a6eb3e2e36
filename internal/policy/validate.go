package policy

import (
	"fmt"
	"strings"
)

// Validate checks the whole document. Any failure wraps ErrInvalidPolicy.
func (s *Set) Validate() error {
	if len(s.Teams) == 0 {
		return fmt.Errorf("%w: no teams defined", ErrInvalidPolicy)
	}
	seen := make(map[string]struct{}, len(s.Teams))
	for i := range s.Teams {
		t := &s.Teams[i]
		applyDefaults(t)
		if err := t.validate(); err != nil {
			return err
		}
		if _, dup := seen[t.TeamID]; dup {
			return fmt.Errorf("%w: duplicate team %q", ErrInvalidPolicy, t.TeamID)
		}
		seen[t.TeamID] = struct{}{}
	}
	return nil
}

func applyDefaults(t *TeamPolicy) {
	if len(t.Healing.Actions) == 0 {
		t.Healing.Actions = append([]string(nil), DefaultActions...)
	}
	if t.Healing.MaxAttempts == 0 {
		t.Healing.MaxAttempts = 3
	}
	if t.Healing.MaxRestartsPerHour == 0 {
		t.Healing.MaxRestartsPerHour = 6
	}
	if t.Breaker.FailureThreshold == 0 {
		t.Breaker.FailureThreshold = 3
	}
	if t.Breaker.OpenTimeoutSeconds == 0 {
		t.Breaker.OpenTimeoutSeconds = 300
	}
	if t.ActiveEnvironment == "" {
		t.ActiveEnvironment = "blue"
	}
}

func (t *TeamPolicy) validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: team %q: %s", ErrInvalidPolicy, t.TeamID, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(t.TeamID) == "" {
		return fmt.Errorf("%w: team with empty team_id", ErrInvalidPolicy)
	}
	if t.Tier != TierProduction && t.Tier != TierTesting {
		return fail("tier must be production or testing, got %q", t.Tier)
	}

	w := t.Weights
	if w.Metrics < 0 || w.Logs < 0 || w.HealthChecks < 0 {
		return fail("weights must be non-negative")
	}
	if sum := w.Metrics + w.Logs + w.HealthChecks; sum != 100 {
		return fail("weights must sum to 100, got %d", sum)
	}

	th := t.Thresholds
	if th.ErrorRateMax < 0 || th.ErrorRateMax > 1 {
		return fail("error_rate_max must be in [0,1], got %g", th.ErrorRateMax)
	}
	if th.AvailabilityMin < 0 || th.AvailabilityMin > 1 {
		return fail("availability_min must be in [0,1], got %g", th.AvailabilityMin)
	}
	if th.ResponseTimeP95MaxMS < 0 {
		return fail("response_time_p95_max_ms must be non-negative")
	}
	if th.CPUMaxPercent < 0 || th.CPUMaxPercent > 100 || th.MemoryMaxPercent < 0 || th.MemoryMaxPercent > 100 {
		return fail("resource limits must be percentages in [0,100]")
	}

	sli := t.SLITargets
	if sli.Availability < 0 || sli.Availability > 1 {
		return fail("sli availability target must be in [0,1], got %g", sli.Availability)
	}
	if sli.ErrorRate < 0 || sli.ErrorRate > 1 {
		return fail("sli error_rate target must be in [0,1], got %g", sli.ErrorRate)
	}
	if sli.MTTRMinutes < 0 {
		return fail("sli mttr_minutes must be non-negative")
	}

	for _, a := range t.Healing.Actions {
		switch a {
		case ActionGracefulRestart, ActionContainerRestart, ActionEnvironmentSwitch, ActionNotify:
		default:
			return fail("unknown healing action %q", a)
		}
	}
	if t.Healing.Actions[len(t.Healing.Actions)-1] != ActionNotify {
		return fail("healing actions must end with %q", ActionNotify)
	}
	if t.Healing.MaxAttempts < 1 {
		return fail("max_attempts must be at least 1")
	}
	if t.Healing.MinHealthyInstances < 0 {
		return fail("min_healthy_instances must be non-negative")
	}
	if bh := t.Healing.BusinessHours; bh.Enabled {
		if bh.StartHour < 0 || bh.StartHour > 23 || bh.EndHour < 1 || bh.EndHour > 24 || bh.StartHour >= bh.EndHour {
			return fail("business_hours window %d-%d is invalid", bh.StartHour, bh.EndHour)
		}
	}

	if t.Breaker.FailureThreshold < 1 {
		return fail("circuit breaker failure_threshold must be at least 1")
	}
	if t.Breaker.OpenTimeoutSeconds < 1 {
		return fail("circuit breaker open_timeout_seconds must be at least 1")
	}

	if t.ActiveEnvironment != "blue" && t.ActiveEnvironment != "green" {
		return fail("active_environment must be blue or green, got %q", t.ActiveEnvironment)
	}
	if containsAction(t.Healing.Actions, ActionEnvironmentSwitch) && t.Healing.Enabled && !t.BlueGreenEnabled {
		return fail("environment_switch action requires blue_green_enabled")
	}
	return nil
}

func containsAction(actions []string, want string) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}
