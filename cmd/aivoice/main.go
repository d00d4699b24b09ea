package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"

	log "log/slog"

	"aivoice/internal/config"
	"aivoice/internal/daemon"
)

func main() {
	cfg, err := config.Load(cli.CommandLine, os.Args[1:])
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: cfg.Level(),
	})))

	log.Info("Booting up", "bus", cfg.BusURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := daemon.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Voice plugin stopped", "err", err)
		os.Exit(1)
	}

	log.Info("Shut down")
}
