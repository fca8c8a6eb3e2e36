package escalate

import "context"

// Remediator dispatches remediation through the external orchestration
// system. Calls are not idempotent-safe, so the engine serializes them
// per team.
//
// Production: remedy.Orchestrator (HTTP API) or remedy.Docker.
// Testing: adapter/fake.Remediator.
type Remediator interface {
	// Restart restarts the team's service. Mode is "graceful" or "container".
	Restart(ctx context.Context, teamID, mode string) error
	// SwitchEnvironment flips the team to the target blue/green environment.
	SwitchEnvironment(ctx context.Context, teamID, target string) error
	// Scale adjusts the instance count by delta.
	Scale(ctx context.Context, teamID string, delta int) error
	// HealthyInstances reports how many instances currently pass the
	// orchestrator's own readiness check.
	HealthyInstances(ctx context.Context, teamID string) (int, error)
}

// Notifier delivers human-facing alerts.
//
// Production: notify.Webhook or notify.Log.
// Testing: adapter/fake.Notifier.
type Notifier interface {
	Notify(ctx context.Context, channel, severity, message string) error
}
