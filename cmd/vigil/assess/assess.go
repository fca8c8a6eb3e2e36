// Package assesscmd implements "vigil assess": one-shot health
// assessment of one or more teams without triggering remediation.
package assesscmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"vigil/cmd/vigil/cmdutil"
	"vigil/cmd/vigil/ui"
	"vigil/internal/health"
)

type report struct {
	TeamID    string             `json:"team_id"`
	Composite float64            `json:"composite_score"`
	Status    string             `json:"status"`
	SubScores map[string]float64 `json:"sub_scores"`
	Decision  decisionReport     `json:"decision"`
}

type decisionReport struct {
	WouldDispatch bool   `json:"would_dispatch"`
	Action        string `json:"action,omitempty"`
	Level         string `json:"level"`
	Reason        string `json:"reason,omitempty"`
}

// Cmd returns the "vigil assess" command.
func Cmd(cfg *cmdutil.ConfigFlag) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "assess [team...]",
		Short: "Run one assessment cycle and report health",
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := cfg.LoadSet()
			if err != nil {
				return err
			}

			rt, err := cmdutil.BuildRuntime(cmd.Context(), set, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			teams := args
			if len(teams) == 0 {
				teams = rt.Engine.TeamIDs()
				sort.Strings(teams)
			}

			var reports []report
			for _, teamID := range teams {
				a, d, err := rt.Engine.Assess(cmd.Context(), teamID)
				if err != nil {
					return fmt.Errorf("assess %s: %w", teamID, err)
				}

				sub := make(map[string]float64, len(a.SubScores))
				for src, v := range a.SubScores {
					sub[string(src)] = v
				}
				reports = append(reports, report{
					TeamID:    teamID,
					Composite: a.Composite,
					Status:    a.Status.String(),
					SubScores: sub,
					Decision: decisionReport{
						WouldDispatch: d.Dispatch,
						Action:        d.Action,
						Level:         d.Level.String(),
						Reason:        d.Reason,
					},
				})
			}

			switch format {
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			case "table":
				printTable(reports)
				return nil
			default:
				return fmt.Errorf("unknown format %q (want table or json)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table or json")
	return cmd
}

func printTable(reports []report) {
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		action := r.Decision.Reason
		if r.Decision.WouldDispatch {
			action = ui.Bold(r.Decision.Action)
		}
		rows = append(rows, []string{
			r.TeamID,
			ui.Score(r.Composite),
			coloredStatus(r.Status),
			subScore(r.SubScores, "metrics"),
			subScore(r.SubScores, "logs"),
			subScore(r.SubScores, "healthchecks"),
			r.Decision.Level,
			action,
		})
	}
	fmt.Println(ui.Table(
		[]string{"TEAM", "SCORE", "STATUS", "METRICS", "LOGS", "PROBE", "LEVEL", "DECISION"},
		rows,
	))
}

func subScore(sub map[string]float64, source string) string {
	v, ok := sub[source]
	if !ok {
		return ui.Muted("n/a")
	}
	return fmt.Sprintf("%.1f", v)
}

func coloredStatus(s string) string {
	return ui.StatusText(health.ParseStatus(s))
}
