package commands

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/pocketcalc/pkg/script"
)

func newWatchCommand() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch <paths...>",
		Short: "Re-run key scripts when they change",
		Long: `Run key scripts, then watch them and run them again whenever a script
file is written, created or renamed. Changes arriving close together are
batched into one run. Scripts that fail to load are reported and skipped.

Stop with Ctrl-C.`,
		Example: `  # Watch a directory of scripts
  pcalc watch scripts/

  # React faster to edits
  pcalc watch --debounce 100ms scripts/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()
			a.outcomesOnly()

			logger := *a.tel.Logger.Zerolog()
			loader := script.NewLoader(logger)
			runner := script.NewRunner(a.tel)
			out := cmd.OutOrStdout()

			run := func(ctx context.Context, scripts []*script.Script, err error) {
				if err != nil {
					log.Error().Err(err).Msg("Some scripts failed to load")
				}
				report, err := runner.RunAll(ctx, scripts)
				if err != nil {
					log.Error().Err(err).Msg("Script run aborted")
					return
				}
				if err := printReport(out, report); err != nil {
					log.Error().Err(err).Msg("Failed to print report")
				}
				// Export the run's spans now; the process may run for hours.
				if err := a.tel.Flush(ctx); err != nil {
					log.Warn().Err(err).Msg("Failed to flush traces")
				}
			}

			scripts, err := loader.LoadPaths(args)
			run(cmd.Context(), scripts, err)

			watcher := script.NewWatcher(loader, logger)
			watcher.SetDebounce(debounce)

			log.Info().Strs("paths", args).Msg("Watching for changes")
			return watcher.Watch(cmd.Context(), args, run)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", script.DefaultDebounce, "delay before re-running after a change")

	return cmd
}
