package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/pocketcalc/pkg/script"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <paths...>",
		Short: "Run key scripts",
		Long: `Run key scripts and report which expectations failed.

A key script is a YAML or CUE file listing key sequences and the display or
memory indicator expected after each one. Every script runs on a fresh
calculator. Directories are searched recursively for .yaml, .yml and .cue
files.

The command exits with an error when any script fails or cannot be loaded.`,
		Example: `  # Run a single script
  pcalc run scripts/chained.yaml

  # Run every script in a directory
  pcalc run scripts/

  # Machine-readable report
  pcalc run --json scripts/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()
			a.outcomesOnly()

			loader := script.NewLoader(*a.tel.Logger.Zerolog())
			scripts, err := loader.LoadPaths(args)
			if err != nil {
				return err
			}

			log.Debug().Int("scripts", len(scripts)).Msg("Running scripts")

			report, err := script.NewRunner(a.tel).RunAll(cmd.Context(), scripts)
			if err != nil {
				return err
			}
			if err := printReport(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.OK() {
				return fmt.Errorf("%d of %d scripts failed", report.Failed, len(report.Results))
			}
			return nil
		},
	}

	return cmd
}

// printReport writes one line per script, the failed steps of failed
// scripts and a summary.
func printReport(w io.Writer, report *script.Report) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	for _, res := range report.Results {
		if res.Passed {
			fmt.Fprintf(w, "PASS  %s (%s)\n", res.Script, res.Duration)
			if verbose {
				for _, st := range res.Steps {
					fmt.Fprintf(w, "      %d. %s -> %s\n", st.Index, st.Keys, st.Display)
				}
			}
			continue
		}

		fmt.Fprintf(w, "FAIL  %s (%s)\n", res.Script, res.Duration)
		for _, st := range res.Steps {
			for _, f := range st.Failures {
				fmt.Fprintf(w, "      step %d %q: %s\n", st.Index, st.Keys, f)
			}
		}
	}

	fmt.Fprintf(w, "\n%d passed, %d failed\n", report.Passed, report.Failed)
	return nil
}
