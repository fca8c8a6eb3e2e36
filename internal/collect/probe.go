package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"vigil/internal/health"
)

// defaultProbeTimeout bounds a single health-check run.
const defaultProbeTimeout = 10 * time.Second

// CommandResolver returns the health-check command for a team. An empty
// result means the team has no probe configured.
type CommandResolver func(teamID string) []string

// Prober runs each team's health-check command and reports exit code and
// duration. A timeout counts as a failed probe, not an unavailable source.
type Prober struct {
	resolve CommandResolver
	timeout time.Duration
	clock   health.Clock

	// runCommand overrides process execution for testing.
	runCommand func(ctx context.Context, argv []string) (int, error)
}

// NewProber creates a probe collector resolving commands through resolve.
func NewProber(resolve CommandResolver) *Prober {
	return &Prober{
		resolve: resolve,
		timeout: defaultProbeTimeout,
		clock:   health.RealClock{},
		runCommand: func(ctx context.Context, argv []string) (int, error) {
			cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
			err := cmd.Run()
			if err == nil {
				return 0, nil
			}
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return exitErr.ExitCode(), nil
			}
			return 0, err
		},
	}
}

func (p *Prober) Source() health.Source { return health.SourceHealthChecks }

// Fetch executes the probe once. The window is ignored: probes are
// point-in-time.
func (p *Prober) Fetch(ctx context.Context, teamID string, _ time.Duration) (health.Sample, error) {
	argv := p.resolve(teamID)
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: no health check configured for team %q", ErrSourceUnavailable, teamID)
	}

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := p.clock.Now()
	code, err := p.runCommand(runCtx, argv)
	elapsed := p.clock.Now().Sub(start)

	if runCtx.Err() != nil {
		slog.Debug("health check probe timed out", "team", teamID, "timeout", p.timeout)
		return health.ProbeSample{ExitCode: -1, Duration: elapsed, TimedOut: true}, nil
	}
	if err != nil {
		// Could not even start the command: treat as unavailable rather
		// than a failed probe.
		return nil, fmt.Errorf("%w: run health check: %v", ErrSourceUnavailable, err)
	}

	return health.ProbeSample{ExitCode: code, Duration: elapsed}, nil
}
