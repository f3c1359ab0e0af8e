package commands

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/pocketcalc/pkg/calculator"
	"github.com/openfroyo/pocketcalc/pkg/session"
)

func newPressCommand() *cobra.Command {
	var (
		trace  bool
		memory float64
	)

	cmd := &cobra.Command{
		Use:   "press <keys...>",
		Short: "Press a key sequence and print the display",
		Long: `Press a key sequence on a fresh calculator and print the final display.

Keys may be separated by spaces or written together. Recognized keys:
  0-9 .          digits and decimal point
  + - x / =      operators (also * × ÷) and equals
  C AC BS        clear entry, clear all, backspace
  sqrt log       square root, base-10 logarithm
  M+ M- MR MC    memory add, subtract, recall, clear

The memory indicator is printed on a second line when memory is set.`,
		Example: `  # Chained operators are evaluated left to right
  pcalc press 2 + 3 x 4 =

  # Keys can be written together
  pcalc press "12.5/5="

  # Show every display change
  pcalc press --trace 9 sqrt M+ AC MR

  # Start with a value in memory
  pcalc press --memory 16 MR sqrt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			var display calculator.Display
			if trace || a.cfg.REPL.Trace {
				display = session.NewWriterDisplay(cmd.ErrOrStderr())
			}

			sess := session.New(cmd.Context(), a.tel, display, session.WithMemory(memory))
			defer sess.Close()

			keys := strings.Join(args, " ")
			log.Debug().Str("keys", keys).Str("session_id", sess.ID).Msg("Pressing keys")

			if _, err := sess.PressKeys(cmd.Context(), keys); err != nil {
				return err
			}
			return printSnapshot(cmd.OutOrStdout(), sess.Snapshot())
		},
	}

	cmd.Flags().BoolVar(&trace, "trace", false, "print every display and memory change")
	cmd.Flags().Float64Var(&memory, "memory", 0, "initial memory register value")

	return cmd
}
