// Package breakercmd implements "vigil breaker": circuit breaker state
// reporting from the persisted engine snapshots.
package breakercmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"vigil/cmd/vigil/cmdutil"
	"vigil/cmd/vigil/ui"
)

// Cmd returns the "vigil breaker" command.
func Cmd(cfg *cmdutil.ConfigFlag) *cobra.Command {
	return &cobra.Command{
		Use:   "breaker [team]",
		Short: "Show circuit breaker states",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := cfg.LoadSet()
			if err != nil {
				return err
			}

			st, err := cmdutil.OpenStore(set)
			if err != nil {
				return err
			}
			defer st.Close()

			states, err := st.ListBreakerStates()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				filtered := states[:0]
				for _, s := range states {
					if s.TeamID == args[0] {
						filtered = append(filtered, s)
					}
				}
				states = filtered
				if len(states) == 0 {
					return fmt.Errorf("no breaker state recorded for team %q", args[0])
				}
			}

			now := time.Now()
			rows := make([][]string, 0, len(states))
			for _, s := range states {
				rows = append(rows, []string{
					s.TeamID,
					stateText(s.State),
					fmt.Sprintf("%d", s.ConsecutiveFailures),
					cmdutil.FormatAge(now, s.OpenedAt),
					cmdutil.FormatAge(now, s.UpdatedAt),
				})
			}
			fmt.Println(ui.Table(
				[]string{"TEAM", "STATE", "FAILURES", "OPENED", "UPDATED"},
				rows,
			))
			return nil
		},
	}
}

func stateText(state string) string {
	switch state {
	case "closed":
		return ui.SuccessStyle.Render(state)
	case "half_open":
		return ui.WarnStyle.Render(state)
	case "open":
		return ui.ErrorStyle.Render(state)
	default:
		return state
	}
}
