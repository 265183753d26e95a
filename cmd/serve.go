package cmd

import (
	"fmt"

	"bist/internal/agent"
	"bist/internal/app"
	"bist/pkg/logging"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve bist as MCP tools over stdio",
		Long: `Serve runs an MCP (Model Context Protocol) server on stdin and stdout so AI
assistants can run tests. It exposes the tools bist_run, bist_explain and
bist_demo.

Configure it in your assistant's MCP settings with the command "bist serve".
Logs are discarded unless --debug is set, in which case they go to stderr.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, args []string) error {
	if !rootDebug {
		logging.Discard()
	}

	a, err := loadApplication()
	if err != nil {
		return err
	}

	ctx, stop := app.WithInterrupt(cmd.Context())
	defer stop()

	srv := agent.NewServer(a, rootCmd.Version)
	if err := srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil && ctx.Err() == nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
