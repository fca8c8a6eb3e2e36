// Package healcmd implements "vigil heal": a forced assessment-and-heal
// cycle for a single team.
package healcmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"vigil/cmd/vigil/cmdutil"
	"vigil/cmd/vigil/ui"
	"vigil/internal/health"
	"vigil/internal/policy"
)

// waitTimeout bounds how long the command waits for the dispatched
// action to finish before reporting it as still running.
const waitTimeout = 90 * time.Second

// Cmd returns the "vigil heal" command.
func Cmd(cfg *cmdutil.ConfigFlag) *cobra.Command {
	return &cobra.Command{
		Use:   "heal <team>",
		Short: "Assess one team and dispatch remediation per its policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamID := args[0]

			set, err := cfg.LoadSet()
			if err != nil {
				return err
			}
			if _, ok := set.Team(teamID); !ok {
				return fmt.Errorf("unknown team %q", teamID)
			}

			rt, err := cmdutil.BuildRuntime(cmd.Context(), set, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			// A running monitor already serializes remediation per
			// team; dispatching from a second process would race it.
			active, err := cmdutil.MonitorActive(rt.Store, time.Now())
			if err != nil {
				return err
			}
			if active {
				return fmt.Errorf("a monitor daemon is active on this state db; it owns remediation for %q", teamID)
			}

			started := time.Now()
			a, d, err := rt.Engine.Assess(cmd.Context(), teamID)
			if err != nil {
				return err
			}

			fmt.Println(ui.KeyValues("  ",
				ui.KV("Team", teamID),
				ui.KV("Score", ui.Score(a.Composite)),
				ui.KV("Status", ui.StatusText(a.Status)),
			))

			if !d.Dispatch {
				if a.Status != health.StatusCritical {
					fmt.Println(ui.SuccessMsg("team is not critical, nothing to heal"))
					return nil
				}
				fmt.Println(ui.WarnMsg("remediation suppressed: %s", d.Reason))
				return nil
			}
			if d.Action == policy.ActionNotify {
				fmt.Println(ui.InfoMsg("escalation exhausted, on-call notified (%s)", d.Level))
				return nil
			}

			fmt.Println(ui.InfoMsg("dispatched %s at %s", d.Action, d.Level))
			return waitForOutcome(cmd.Context(), rt, teamID, started)
		},
	}
}

// waitForOutcome polls the attempt log until the dispatched action
// completes.
func waitForOutcome(ctx context.Context, rt *cmdutil.Runtime, teamID string, since time.Time) error {
	deadline := time.After(waitTimeout)
	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			fmt.Println(ui.WarnMsg("remediation still running after %s", waitTimeout))
			return nil
		case <-tick.C:
			attempts, err := rt.Store.ListAttempts(teamID, 1)
			if err != nil {
				return err
			}
			if len(attempts) == 0 || attempts[0].At.Before(since) {
				continue
			}
			if attempts[0].Success {
				fmt.Println(ui.SuccessMsg("%s succeeded; recovery confirmed on next non-critical assessment", attempts[0].Action))
			} else {
				fmt.Println(ui.ErrorMsg("%s failed; attempt counted toward escalation", attempts[0].Action))
			}
			return nil
		}
	}
}
