package cmd

import (
	"bist/internal/engine"

	"github.com/spf13/cobra"
)

func newExplainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain",
		Short: "Explain the markers used in test output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return engine.Explain(cmd.OutOrStdout())
		},
	}
}
