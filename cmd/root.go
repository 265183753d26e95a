package cmd

import (
	"errors"
	"fmt"
	"os"

	"bist/internal/app"
	"bist/pkg/logging"

	"github.com/spf13/cobra"
)

// errTestsFailed makes the process exit non-zero without printing an error;
// the summary already said what failed.
var errTestsFailed = errors.New("tests failed")

var (
	rootConfigPath string
	rootLogLevel   string
	rootDebug      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bist",
	Short: "Run tests embedded in source comments",
	Long: `bist runs built-in self-tests: marked comment lines in source files are
extracted, split into blocks and executed in order against a shared set of
variables. Results are aggregated across files and leaks are reported.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. failing tests, missing files)
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(rootLogLevel)
		if err != nil {
			return err
		}
		if rootDebug {
			level = logging.LevelDebug
		}
		logging.InitForCLI(level, cmd.ErrOrStderr())
		return nil
	},
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "bist version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errTestsFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// loadApplication reads the configuration selected by the global flags.
func loadApplication() (*app.Application, error) {
	a, err := app.NewApplication(app.NewConfig(rootConfigPath, rootDebug))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return a, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "Config file to use instead of ~/.config/bist and ./.bist")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&rootDebug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newExplainCmd())
	rootCmd.AddCommand(newDemoCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
