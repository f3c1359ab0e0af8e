package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/pocketcalc/pkg/calculator"
	"github.com/openfroyo/pocketcalc/pkg/keypad"
	"github.com/openfroyo/pocketcalc/pkg/session"
)

func newREPLCommand() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive calculator keypad",
		Long: `Start an interactive calculator. Each line is a key sequence; the display
and memory indicator are shown after every line. The calculator keeps its
state between lines, so "2 +" followed by "3 =" shows 5.

Type "reset" to start over with an empty memory, "quit" or Ctrl-D to leave.

With --plain, key sequences are read line by line from standard input and
every display change is printed. Lines starting with # are ignored.`,
		Example: `  # Interactive prompt
  pcalc repl

  # Feed keys from a file
  pcalc repl --plain < keys.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			if plain {
				return runPlain(cmd, a, os.Stdin)
			}
			return runPrompt(cmd, a)
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "read keys from standard input without a prompt")

	return cmd
}

// runPrompt reads key sequences from an interactive prompt.
func runPrompt(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	var display calculator.Display
	if a.cfg.REPL.Trace {
		display = session.NewWriterDisplay(out)
	}
	sess := session.New(ctx, a.tel, display)
	defer sess.Close()

	for ctx.Err() == nil {
		snap := sess.Snapshot()
		label := fmt.Sprintf("%s [%s]", a.cfg.REPL.Prompt, snap.Display)
		if snap.Memory != "" {
			label = fmt.Sprintf("%s [%s | %s]", a.cfg.REPL.Prompt, snap.Display, snap.Memory)
		}

		prompt := promptui.Prompt{
			Label:    label,
			Validate: validateKeys,
		}
		line, err := prompt.Run()
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("prompt failed: %w", err)
		}

		line = strings.TrimSpace(line)
		if isQuit(line) {
			return nil
		}
		if isReset(line) {
			sess.Reset()
			if err := printSnapshot(out, sess.Snapshot()); err != nil {
				return err
			}
			continue
		}

		if _, err := sess.PressKeys(ctx, line); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if err := printSnapshot(out, sess.Snapshot()); err != nil {
			return err
		}
	}
	return nil
}

// runPlain pumps key lines from r into the session until EOF.
func runPlain(cmd *cobra.Command, a *app, r io.Reader) error {
	ctx := cmd.Context()

	sess := session.New(ctx, a.tel, session.NewWriterDisplay(cmd.OutOrStdout()))
	defer sess.Close()

	events := make(chan calculator.Event)
	pumpErr := make(chan error, 1)
	go func() {
		defer close(events)
		pumpErr <- keypad.Pump(ctx, r, events)
	}()

	runErr := sess.Run(ctx, events)
	if ctx.Err() != nil {
		// The pump may still be blocked reading r.
		return nil
	}
	if err := <-pumpErr; err != nil {
		return err
	}
	if runErr != nil {
		log.Warn().Err(runErr).Msg("Key press rejected")
	}
	return nil
}

func validateKeys(input string) error {
	if line := strings.TrimSpace(input); isQuit(line) || isReset(line) {
		return nil
	}
	_, err := keypad.ParseSequence(input)
	return err
}

func isQuit(line string) bool {
	switch strings.ToLower(line) {
	case "quit", "exit", "q":
		return true
	}
	return false
}

func isReset(line string) bool {
	return strings.EqualFold(line, "reset")
}
