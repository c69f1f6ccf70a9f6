package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"hospitalsync/infrastructure/config"
)

// Process exit codes
const (
	exitOK     = 0
	exitFailed = 1
	exitFatal  = 2
)

// exitError carries the exit code a command wants
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func fatal(err error) error {
	return &exitError{code: exitFatal, err: err}
}

func newRootCmd() *cobra.Command {
	var overrides config.Overrides

	runCmd := newRunCmd(&overrides)

	rootCmd := &cobra.Command{
		Use:   "hospitalsync",
		Short: "Mirror the CMS Hospitals datasets with normalized CSV headers",
		Long: `hospitalsync downloads the CMS provider-data datasets tagged with a theme
(default "Hospitals"), rewrites each CSV header row to snake_case identifiers
and only fetches datasets that changed upstream since the last successful run.

Available commands:
  run     - Run one sync pass (default)
  status  - Show the run metadata store

Examples:
  hospitalsync                          # Sync into ./cleaned_files
  hospitalsync --dry-run                # Show what would be downloaded
  hospitalsync run --workers 16         # Sync with a larger pool
  hospitalsync status                   # List processed datasets`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCmd.RunE,
	}

	bindRunFlags(rootCmd, &overrides)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(newStatusCmd(&overrides))
	return rootCmd
}

// bindRunFlags registers the override flags on cmd. The root command and
// run share one Overrides value.
func bindRunFlags(cmd *cobra.Command, o *config.Overrides) {
	flags := cmd.Flags()
	flags.StringVar(&o.OutputDir, "output-dir", "", "Output directory, or bucket for S3 storage (env OUTPUT_DIR)")
	flags.StringVar(&o.StatePath, "state-path", "", "Run metadata file (env STATE_PATH)")
	flags.IntVar(&o.Workers, "workers", 0, "Concurrent downloads (env WORKERS)")
	flags.StringVar(&o.Theme, "theme", "", "Metastore theme to sync (env METASTORE_THEME)")
	flags.BoolVar(&o.DryRun, "dry-run", false, "List the datasets that would be downloaded and exit")
}

// execute runs the command line and maps the outcome to an exit code
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		if exitErr.err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "Error:", exitErr.err)
		}
		return exitErr.code
	}

	// flag and argument errors
	fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	return exitFatal
}
