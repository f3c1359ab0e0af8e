package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/pocketcalc/pkg/config"
	"github.com/openfroyo/pocketcalc/pkg/session"
	"github.com/openfroyo/pocketcalc/pkg/telemetry"
)

var (
	// Global flags
	configPath  string
	environment string
	verbose     bool
	jsonOutput  bool
	metricsAddr string

	buildVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	buildVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pcalc",
		Short: "pcalc - pocket calculator engine",
		Long: `pcalc drives a pocket calculator from the command line.

Keys are pressed one at a time, exactly like on a handheld calculator:
  - digits, decimal point and the four operators
  - equals with left-to-right chaining
  - square root and base-10 logarithm
  - memory keys M+, M-, MR and MC

Key scripts check sequences of presses against expected displays, and the
calculator can be served to assistants over the Model Context Protocol.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (.yaml or .cue)")
	rootCmd.PersistentFlags().StringVar(&environment, "env", "", "start from the development or production preset")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	rootCmd.AddCommand(newPressCommand())
	rootCmd.AddCommand(newREPLCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newMCPCommand())

	return rootCmd
}

// app holds what every command needs: configuration, telemetry and the
// optional metrics server.
type app struct {
	cfg     *config.Config
	tel     *telemetry.Telemetry
	metrics *http.Server
}

// setup loads the configuration, applies the global flags and starts
// telemetry. The caller must call close.
func setup() (*app, error) {
	cfg, err := config.LoadPreset(environment, configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen = metricsAddr
	}

	tel, err := telemetry.NewTelemetry(cfg.ToTelemetry(buildVersion))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	// Telemetry events go to the log: everything with --verbose, otherwise
	// only failures.
	var eventFilter telemetry.EventFilter
	if !verbose {
		eventFilter = telemetry.FilterByLevel(telemetry.EventLevelError)
	}
	tel.Events.Subscribe(telemetry.LogSubscriber(tel.Logger.NewComponentLogger("events")), eventFilter)

	a := &app{cfg: cfg, tel: tel}
	if a.metrics = tel.Metrics.StartMetricsServer(); a.metrics != nil {
		log.Info().Str("addr", a.metrics.Addr).Msg("Serving metrics")
	}

	tel.Logger.Zerolog().Debug().
		Str("config", cfg.Source).
		Str("environment", cfg.Service.Environment).
		Msg("Configuration loaded")

	return a, nil
}

// outcomesOnly restricts published events to script outcomes and faults.
// Batch runs press many keys per script and display changes are noise
// there unless --verbose asks for them.
func (a *app) outcomesOnly() {
	if verbose {
		return
	}
	a.tel.Events.AddFilter(telemetry.FilterByType(
		telemetry.EventTypeScriptPassed,
		telemetry.EventTypeScriptFailed,
		telemetry.EventTypeError,
	))
}

// close flushes telemetry and stops the metrics server.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to stop metrics server")
		}
	}
	if err := a.tel.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to shut down telemetry")
	}
}

// printSnapshot writes the display and, when set, the memory indicator.
func printSnapshot(w io.Writer, snap session.Snapshot) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	fmt.Fprintln(w, snap.Display)
	if snap.Memory != "" {
		fmt.Fprintln(w, snap.Memory)
	}
	return nil
}
