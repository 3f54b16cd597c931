package cmd

import (
	"context"
	"fmt"

	"gosgi/internal/app"

	"github.com/spf13/cobra"
)

// runConsole starts the interactive console next to the framework.
var runConsole bool

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the framework and keep it running until interrupted",
		Long: `Starts the framework, reinstalls the bundles persisted in the storage
directory and raises the framework to its beginning start level.

When deploy.enabled is set, bundle descriptors dropped into the deploy
directory are installed, updated and uninstalled automatically. When
metrics.enabled is set, Prometheus metrics are served on metrics.address.

Use --console for an interactive shell to install, start, stop, update,
refresh and inspect bundles.`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}
	cmd.Flags().BoolVar(&runConsole, "console", false, "Start the interactive console")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(debug, runConsole, configPath)

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}
