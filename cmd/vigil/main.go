package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	assesscmd "vigil/cmd/vigil/assess"
	"vigil/cmd/vigil/breakercmd"
	"vigil/cmd/vigil/cmdutil"
	"vigil/cmd/vigil/configcmd"
	healcmd "vigil/cmd/vigil/heal"
	monitorcmd "vigil/cmd/vigil/monitor"
	trendscmd "vigil/cmd/vigil/trends"
	"vigil/internal/logging"
)

var version = "dev"

func main() {
	var (
		debug bool
		cfg   cmdutil.ConfigFlag
	)
	if err := logging.Configure(logging.LevelWarn); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "vigil",
		Short:         "Health assessment and automated healing for service teams",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelWarn
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level)
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cfg.Bind(root)

	root.AddCommand(assesscmd.Cmd(&cfg))
	root.AddCommand(monitorcmd.Cmd(&cfg))
	root.AddCommand(healcmd.Cmd(&cfg))
	root.AddCommand(breakercmd.Cmd(&cfg))
	root.AddCommand(trendscmd.Cmd(&cfg))
	root.AddCommand(configcmd.Cmd(&cfg))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
