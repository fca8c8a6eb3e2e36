// Package configcmd implements "vigil config": validated policy
// inspection.
package configcmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vigil/cmd/vigil/cmdutil"
	"vigil/cmd/vigil/ui"
)

// Cmd returns the "vigil config" command.
func Cmd(cfg *cmdutil.ConfigFlag) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate and print the effective policy document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, err := cfg.LoadSet()
			if err != nil {
				return err
			}

			// Dump after validation so the output carries the applied
			// defaults, not the raw file.
			data, err := set.Dump()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the policy document without printing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, err := cfg.LoadSet()
			if err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("%s: %d teams valid", cfg.Resolve(), len(set.Teams)))
			return nil
		},
	})

	return cmd
}
