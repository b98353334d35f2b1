package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"landform/internal/command"
	"landform/internal/config"
	"landform/internal/logging"
	"landform/internal/storage"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "landform: load .env: %v\n", err)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := command.BuildApp(command.Deps{
		LoadConfig: config.LoadConfig,
		RunForm: func(ctx context.Context, cfg config.Config, opts command.RunOptions) error {
			return runForm(ctx, cfg, opts, newRuntimeLogger(cfg).With("module", "run"))
		},
		ServeForm: func(ctx context.Context, cfg config.Config, opts command.RunOptions) error {
			return serveForm(ctx, cfg, opts, newRuntimeLogger(cfg).With("module", "serve"))
		},
		RunMigrateUp: func(ctx context.Context, cfg config.Config) error {
			return runMigrateUp(ctx, cfg, newRuntimeLogger(cfg).With("module", "migrate"))
		},
		OpenGateway: func(ctx context.Context, cfg config.Config) (*storage.Gateway, func() error, error) {
			return openGateway(ctx, cfg, newRuntimeLogger(cfg).With("module", "storage"))
		},
	})

	if err := app.RunContext(rootCtx, os.Args); err != nil {
		logging.NewLogger(logging.Options{Level: "error", Writer: os.Stderr, Component: "landform"}).Error("landform failed", "err", err)
		os.Exit(1)
	}
}
