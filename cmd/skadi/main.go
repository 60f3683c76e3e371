package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/skadi/skadi/cmd/skadi/commands"
)

// Build metadata, overridden with -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	bootstrapLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Execute(ctx, Version, Commit, BuildDate)
	interrupted := ctx.Err() != nil
	stop()

	if err != nil {
		if interrupted {
			log.Warn().Err(err).Msg("Interrupted")
			os.Exit(130)
		}
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// bootstrapLogger configures the global zerolog logger used until settings
// are loaded. Component loggers come from the telemetry settings.
func bootstrapLogger() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	level, err := zerolog.ParseLevel(os.Getenv("SKADI_LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
