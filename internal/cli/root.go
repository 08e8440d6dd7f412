// Package cli is the command surface of the automation binary.
package cli

import (
	"github.com/spf13/cobra"
)

// Version is stamped into /health and the build info metric.
var Version = "dev"

// RootOptions holds the mode flags.
type RootOptions struct {
	Server bool
	Test   bool
}

// NewRootCommand creates the automation command. build is swapped in tests.
func NewRootCommand() *cobra.Command {
	return newRootCommand(buildRuntime)
}

func newRootCommand(build builder) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pgfn-automation",
		Short: "Enrich CRM deals with PGFN tax-debt data",
		Long: "Discovers deals in the target pipeline stages, looks up each taxpayer in the PGFN " +
			"registry service and writes the results back to the deal.\n\n" +
			"Without flags a single cycle runs, or the continuous loop when PGFN_CONTINUOUS_MODE=true.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), *opts, build)
		},
	}

	cmd.Flags().BoolVarP(&opts.Server, "server", "s", false, "run continuously and serve the monitoring endpoints")
	cmd.Flags().BoolVarP(&opts.Test, "test", "t", false, "check CRM and registry connectivity and exit")
	cmd.MarkFlagsMutuallyExclusive("server", "test")

	return cmd
}
