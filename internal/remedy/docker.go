package remedy

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"vigil/internal/escalate"
)

// teamLabel is the container label carrying the owning team id.
const teamLabel = "vigil.team"

// gracefulStopSeconds is how long a graceful restart waits for the process
// to exit before the engine kills it.
var gracefulStopSeconds = int(30 * time.Second / time.Second)

var _ escalate.Remediator = (*Docker)(nil)

// Docker remediates directly against the local Docker Engine for
// deployments without an orchestrator API. Environment switching and
// scaling are orchestrator concerns and are not supported here.
type Docker struct {
	cli *client.Client
}

// NewDocker creates a Docker remediator from the environment.
func NewDocker() (*Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Docker{cli: cli}, nil
}

// NewDockerFromClient wraps an existing Docker client.
func NewDockerFromClient(cli *client.Client) *Docker {
	return &Docker{cli: cli}
}

// Restart restarts every container labeled with the team. Graceful mode
// allows the stop timeout; container mode kills immediately.
func (d *Docker) Restart(ctx context.Context, teamID, mode string) error {
	names, err := d.teamContainers(ctx, teamID, true)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("restart team %q: no containers labeled %s", teamID, teamLabel)
	}

	opts := container.StopOptions{}
	if mode == "graceful" {
		opts.Timeout = &gracefulStopSeconds
	} else {
		zero := 0
		opts.Timeout = &zero
	}

	for _, name := range names {
		if err := d.cli.ContainerRestart(ctx, name, opts); err != nil {
			return fmt.Errorf("restart container %q: %w", name, err)
		}
	}
	return nil
}

func (d *Docker) SwitchEnvironment(_ context.Context, teamID, _ string) error {
	return fmt.Errorf("switch environment for %q: not supported by the docker remediator", teamID)
}

func (d *Docker) Scale(_ context.Context, teamID string, _ int) error {
	return fmt.Errorf("scale team %q: not supported by the docker remediator", teamID)
}

// HealthyInstances counts the team's running containers.
func (d *Docker) HealthyInstances(ctx context.Context, teamID string) (int, error) {
	names, err := d.teamContainers(ctx, teamID, false)
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

func (d *Docker) teamContainers(ctx context.Context, teamID string, includeStopped bool) ([]string, error) {
	list, err := d.cli.ContainerList(ctx, container.ListOptions{
		All:     includeStopped,
		Filters: filters.NewArgs(filters.Arg("label", fmt.Sprintf("%s=%s", teamLabel, teamID))),
	})
	if err != nil {
		return nil, fmt.Errorf("list containers for team %q: %w", teamID, err)
	}
	names := make([]string, 0, len(list))
	for _, c := range list {
		names = append(names, c.ID)
	}
	return names, nil
}
