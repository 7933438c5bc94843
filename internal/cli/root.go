// Package cli implements kgctl, an operator CLI running the ingestion and
// query pipeline in-process against the configured store.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/OFFIS-RIT/kgraph/internal/app"
	"github.com/OFFIS-RIT/kgraph/internal/util"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"
	"github.com/OFFIS-RIT/kgraph/pkg/logger/console"

	"github.com/spf13/cobra"
)

var (
	jsonOutput bool
	debug      bool

	// newApp is replaced in tests.
	newApp = func(ctx context.Context) (*app.App, error) {
		return app.New(ctx, app.LoadConfig())
	}
	application *app.App
)

var rootCmd = &cobra.Command{
	Use:           "kgctl",
	Short:         "Build and query a concept graph",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
			Debug:  debug,
			Format: util.GetEnv("LOG_FORMAT"),
		}))

		a, err := newApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize: %w", err)
		}
		application = a
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if application != nil {
			application.Close()
			application = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output results as JSON")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
