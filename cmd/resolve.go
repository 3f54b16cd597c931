package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gosgi/internal/config"
	"gosgi/internal/deploy"
	"gosgi/internal/formatting"
	"gosgi/internal/framework"
	"gosgi/internal/module"
	"gosgi/pkg/logging"

	"github.com/spf13/cobra"
)

// UnresolvedError reports bundles a dry run could not resolve.
type UnresolvedError struct {
	Count int
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("%d bundle(s) could not be resolved", e.Count)
}

// IsUnresolved checks if an error is an UnresolvedError.
func IsUnresolved(err error) bool {
	var unresolved *UnresolvedError
	return errors.As(err, &unresolved)
}

// resolveFormat is the output format of the resolve report.
var resolveFormat string

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <descriptor>...",
		Short: "Resolve bundle descriptors without running them",
		Long: `Installs the given bundle descriptors into a throwaway framework, resolves
them and prints the bundles, the wires the resolver chose and the reason each
unresolved bundle failed. Nothing is started and nothing is persisted.

System packages and resolver settings are read from the configuration
directory. The command exits with code 2 when a bundle stays unresolved.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runResolve,
	}
	cmd.Flags().StringVarP(&resolveFormat, "output", "o", "table", "Output format: table, plain, json or yaml")
	return cmd
}

func runResolve(cmd *cobra.Command, args []string) error {
	format, err := formatting.ParseFormat(resolveFormat)
	if err != nil {
		return err
	}

	var logOutput io.Writer = io.Discard
	level := logging.LevelInfo
	if debug {
		logOutput = cmd.ErrOrStderr()
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, logOutput)

	cfg := config.GetDefaultConfig()
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), config.DescribeError(err))
			return err
		}
	}
	storageDir, err := os.MkdirTemp("", "gosgi-resolve-")
	if err != nil {
		return fmt.Errorf("failed to create scratch storage: %w", err)
	}
	defer os.RemoveAll(storageDir)
	cfg.Storage.Dir = storageDir
	cfg.Storage.Clean = true
	cfg.Deploy.Enabled = false
	cfg.Metrics.Enabled = false

	report, err := dryRun(cfg, args)
	if err != nil {
		return err
	}

	formatter := formatting.NewFormatter(formatting.Options{Format: format})
	for _, t := range report.tables {
		if err := formatter.Write(cmd.OutOrStdout(), t); err != nil {
			return err
		}
	}
	if report.unresolved > 0 {
		return &UnresolvedError{Count: report.unresolved}
	}
	return nil
}

type resolveReport struct {
	tables     []formatting.Table
	unresolved int
}

// dryRun installs the descriptors into a fresh framework, resolves them
// and stops the framework again.
func dryRun(cfg config.FrameworkConfig, paths []string) (*resolveReport, error) {
	fw, err := framework.New(framework.Options{Config: cfg})
	if err != nil {
		return nil, err
	}
	if err := fw.Start(); err != nil {
		return nil, err
	}
	defer func() {
		_ = fw.Stop()
		fw.WaitForStop(cfg.ShutdownTimeout)
	}()

	var installed []module.BundleID
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(abs)
		if err != nil {
			return nil, err
		}
		b, err := fw.Install(deploy.Location(abs), f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to install %s: %w", path, err)
		}
		installed = append(installed, b.ID())
	}

	fw.ResolveBundles(installed...)

	report := &resolveReport{}
	failures := formatting.Table{
		Title:   "Resolution failures",
		Headers: []string{"ID", "NAME", "REASON"},
		Keys:    []string{"id", "symbolicName", "reason"},
		Empty:   "All bundles resolved",
	}
	var bundles []*framework.Bundle
	for _, id := range installed {
		b, err := fw.Bundle(id)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
		if b.State() != framework.StateInstalled {
			continue
		}
		report.unresolved++
		reason := "unresolved"
		if err := fw.ResolveBundle(id); err != nil {
			reason = err.Error()
		}
		failures.Rows = append(failures.Rows, []string{fmt.Sprint(id), b.SymbolicName(), reason})
	}

	report.tables = []formatting.Table{
		formatting.BundlesTable(bundles),
		formatting.WiresTable(fw.Graph(), installed...),
		failures,
	}
	return report, nil
}
