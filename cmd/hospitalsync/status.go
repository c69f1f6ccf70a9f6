package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"hospitalsync/infrastructure/config"
	"hospitalsync/infrastructure/observability"
	"hospitalsync/infrastructure/runstore"
	"hospitalsync/internal/runstate"
)

func newStatusCmd(overrides *config.Overrides) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the run metadata store",
		Long: `Prints every recorded dataset with the upstream version it was last processed at.
Records whose output object is no longer in storage are marked missing.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(*overrides)
			if err != nil {
				return fatal(err)
			}

			obs, err := observability.CreateObservability(cfg)
			if err != nil {
				return fatal(err)
			}
			logger, metrics, err := obs.ComponentsScoped("runstate")
			if err != nil {
				return fatal(err)
			}

			backend, closeBackend, err := runstore.Create(ctx, cfg, obs)
			if err != nil {
				return fatal(err)
			}
			defer closeBackend()

			store := runstate.New(backend, logger, metrics)
			if err := store.Load(ctx); err != nil {
				return fatal(err)
			}

			storage, err := initializeStorage(ctx, cfg, obs)
			if err != nil {
				return fatal(err)
			}
			objects, err := storage.List(ctx, "", "")
			if err != nil {
				return fatal(fmt.Errorf("failed to list stored outputs: %w", err))
			}
			stored := make(map[string]bool, len(objects))
			for _, obj := range objects {
				stored[obj.Key] = true
			}

			out := cmd.OutOrStdout()
			if store.Recovered() {
				fmt.Fprintln(out, "Run metadata is unreadable; the next run will fetch every dataset.")
			}

			lastRun := "never"
			if t := store.LastRun(); !t.IsZero() {
				lastRun = t.Format(time.RFC3339)
			}
			records := store.Records()
			fmt.Fprintf(out, "Last run: %s\nDatasets: %d\n\n", lastRun, len(records))

			if len(records) == 0 {
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DATASET\tMODIFIED\tPROCESSED\tOUTPUT\tBYTES\tSTORED")
			missing := 0
			for _, rec := range records {
				presence := "yes"
				if !stored[rec.OutputKey] {
					presence = "missing"
					missing++
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					rec.DatasetID,
					rec.LastProcessedAt.Format(time.DateOnly),
					rec.ProcessedAt.Format(time.RFC3339),
					rec.OutputKey,
					rec.Bytes,
					presence)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if missing > 0 {
				fmt.Fprintf(out, "\n%d recorded outputs are missing from storage\n", missing)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&overrides.StatePath, "state-path", "", "Run metadata file (env STATE_PATH)")
	cmd.Flags().StringVar(&overrides.OutputDir, "output-dir", "", "Output directory, or bucket for S3 storage (env OUTPUT_DIR)")
	return cmd
}
