package cmd

import (
	"github.com/spf13/cobra"
)

// NewCLI builds the root ringrelay command, wiring the server and
// worker subcommands and the shared --config flag both read via
// cmd.Flags().GetString("config").
func NewCLI(version string) *cobra.Command {
	root := &cobra.Command{
		Use:     "ringrelay",
		Short:   "ringrelay delivers webhook events with an in-process disruptor ring",
		Version: version,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to a TOML config file, merged over the built-in defaults")

	root.AddCommand(ServerCmd())
	root.AddCommand(WorkerCmd())
	return root
}
