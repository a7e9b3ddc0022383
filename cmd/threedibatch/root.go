package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for threedibatch.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threedibatch",
		Short: "Batch 3Di simulations for every sub-area of a schematisation",
		Long: `threedibatch automates 3Di scenario runs for a list of sub-areas.

For every sub-area it stages the sub-area rasters in the schematisation
working copy, commits and pushes the working copy with Mercurial, waits
until 3Di has processed the pushed revision into a model and then runs the
configured rain scenarios on that model.

A sub-area that fails is recorded and the run continues with the next one.
Every run is stored in a local history database.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
