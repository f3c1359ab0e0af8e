// Command pcalc drives the pocket calculator engine from the command line,
// from key scripts and from MCP clients.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openfroyo/pocketcalc/cmd/pcalc/commands"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// exitInterrupted is the conventional status for a process killed by SIGINT.
const exitInterrupted = 130

func main() {
	// Logs go to stderr: stdout carries the display and, for "pcalc mcp",
	// the protocol frames.
	setupLogging()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The first signal cancels the context so sessions close and flush
	// their spans. A second one exits at once; "repl --plain" can sit in a
	// blocking read of stdin that never sees the cancellation.
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("Received interrupt signal, shutting down...")
		cancel()

		<-sigChan
		log.Warn().Msg("Second interrupt, exiting")
		os.Exit(exitInterrupted)
	}()

	if err := commands.Execute(ctx, Version, Commit, BuildDate); err != nil {
		log.Error().Err(err).Msg("Command execution failed")
		os.Exit(1)
	}
}

// setupLogging configures the global logger used until the configuration
// file is loaded. LOG_LEVEL takes any zerolog level name; unknown or empty
// values mean info. The tests set it to error to keep output quiet.
func setupLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	level, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
