package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hospitalsync/infrastructure/config"
)

func newRunCmd(overrides *config.Overrides) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one sync pass",
		Long: `Lists the metastore, downloads every dataset whose modified date moved
forward since the last successful run, normalizes its header row and records
the result. Exits 1 when some datasets failed and 2 on fatal errors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(*overrides)
			if err != nil {
				return fatal(err)
			}

			app, err := buildApplication(ctx, cfg)
			if err != nil {
				return fatal(err)
			}
			defer app.Close()

			app.logger.Info("Starting run",
				"service", cfg.ServiceName,
				"version", cfg.Version,
				"environment", cfg.Environment,
				"output", cfg.Storage.BucketOrPath,
				"state", cfg.State.Path)
			app.metrics.IncrementCounter("application.starts", nil)

			report, runErr := app.orchestrator.RunOnce(ctx)
			app.Flush()

			if runErr != nil {
				return fatal(runErr)
			}

			if cfg.Pipeline.DryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d datasets would be downloaded\n", len(report.Selected), report.Listed)
				for _, id := range report.Selected {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			}

			if report.HasFailures() {
				return &exitError{
					code: exitFailed,
					err:  fmt.Errorf("%d of %d datasets failed", len(report.Failed), len(report.Selected)),
				}
			}
			return nil
		},
	}

	bindRunFlags(cmd, overrides)
	return cmd
}
