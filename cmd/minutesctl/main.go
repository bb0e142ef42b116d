package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/meeting-minutes/internal/adapters/cli"
	"github.com/kirillkom/meeting-minutes/internal/bootstrap"
	"github.com/kirillkom/meeting-minutes/internal/config"
	"github.com/kirillkom/meeting-minutes/internal/observability/logging"
)

const serviceName = "cli"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	// The CLI always joins an existing broker.
	cfg.NATSEmbedded = false

	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName)
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	defer app.Close()

	return cli.NewRootCmd(&cli.Dependencies{Meetings: app.Meetings}).ExecuteContext(ctx)
}
