// Package trendscmd implements "vigil trends": health trajectory
// reporting built from the persisted assessment history.
package trendscmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"vigil/cmd/vigil/cmdutil"
	"vigil/cmd/vigil/ui"
	"vigil/internal/health"
	"vigil/internal/health/trend"
)

// historyDepth is how many persisted assessments feed the analyzer.
const historyDepth = 60

// Cmd returns the "vigil trends" command.
func Cmd(cfg *cmdutil.ConfigFlag) *cobra.Command {
	return &cobra.Command{
		Use:   "trends [team...]",
		Short: "Show health score trends per team",
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

			teams := args
			if len(teams) == 0 {
				teams = set.TeamIDs()
				sort.Strings(teams)
			}

			rows := make([][]string, 0, len(teams))
			for _, teamID := range teams {
				history, err := st.ListAssessments(teamID, historyDepth)
				if err != nil {
					return err
				}

				analyzer := trend.New()
				for _, a := range history {
					analyzer.Record(a.Composite, a.Timestamp)
				}

				rows = append(rows, trendRow(teamID, analyzer, history))
			}

			fmt.Println(ui.Table(
				[]string{"TEAM", "SAMPLES", "LAST", "STATUS", "DIRECTION", "CONFIDENCE"},
				rows,
			))
			return nil
		},
	}
}

func trendRow(teamID string, analyzer *trend.Analyzer, history []health.Assessment) []string {
	if len(history) == 0 {
		return []string{teamID, "0", ui.Muted("-"), ui.Muted("-"), ui.Muted("no data"), "-"}
	}
	last := history[len(history)-1]
	return []string{
		teamID,
		fmt.Sprintf("%d", analyzer.Len()),
		ui.Score(last.Composite),
		ui.StatusText(last.Status),
		directionText(analyzer.Direction()),
		fmt.Sprintf("%.0f%%", analyzer.Confidence()*100),
	}
}

func directionText(d trend.Direction) string {
	switch d {
	case trend.DirectionImproving:
		return ui.SuccessStyle.Render(d.String())
	case trend.DirectionDegrading:
		return ui.ErrorStyle.Render(d.String())
	default:
		return ui.Muted(d.String())
	}
}
