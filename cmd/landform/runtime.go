package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"landform/internal/bridge"
	"landform/internal/command"
	"landform/internal/config"
	"landform/internal/db"
	"landform/internal/form"
	"landform/internal/lifecycle"
	"landform/internal/logging"
	"landform/internal/responseapi"
	"landform/internal/session"
	"landform/internal/storage"
	"landform/internal/storage/badgerkv"
	"landform/internal/storage/rediskv"
	"landform/internal/storage/sqlitekv"
	"landform/internal/terminal"
)

const redisKeyPrefix = "landform:"

func newRuntimeLogger(cfg config.Config) *slog.Logger {
	return logging.NewLogger(logging.Options{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		Writer:    os.Stderr,
		Component: "landform",
	})
}

func noopClose() error { return nil }

// openBackend picks the key/value store named by cfg.Storage. A nil backend
// (storage "none") turns persistence off.
func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.Backend, func() error, error) {
	switch cfg.Storage {
	case config.StorageNone:
		return nil, noopClose, nil
	case config.StorageMemory:
		return storage.NewMemory(), noopClose, nil
	case config.StorageBadger:
		store, err := badgerkv.Open(cfg.BadgerDir)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.StorageRedis:
		store := rediskv.New(rediskv.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   redisKeyPrefix,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			// The gateway degrades to defaults per call, so a down redis is not fatal.
			logger.Warn("redis unreachable", "addr", cfg.RedisAddr, "err", err)
		}
		return store, store.Close, nil
	default:
		store, err := sqlitekv.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
}

func openGateway(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage.Gateway, func() error, error) {
	backend, closeFn, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("storage opened", "storage", describeStorage(cfg))
	return storage.NewGateway(backend, storage.WithLogger(logger)), closeFn, nil
}

func newSession(ctx context.Context, cfg config.Config, opts command.RunOptions, gw *storage.Gateway, logger *slog.Logger) (*session.Controller, error) {
	def, err := form.LoadFile(opts.FormPath)
	if err != nil {
		return nil, err
	}
	projectID := def.ProjectID
	if opts.ProjectID != "" {
		projectID = opts.ProjectID
	}
	return session.New(ctx, session.Options{
		Definition:   def,
		ProjectID:    projectID,
		HiddenFields: opts.HiddenFields,
		Client: responseapi.NewClient(responseapi.Options{
			BaseURL:   cfg.APIBaseURL,
			ProjectID: projectID,
			Timeout:   cfg.HTTPTimeout,
			Logger:    logger,
		}),
		Gateway:       gw,
		Logger:        logger,
		AutosaveDelay: cfg.AutosaveDelay,
		OnComplete: func(answers form.Answers) {
			logger.Info("form submitted", "project_id", projectID, "answers", len(answers))
		},
	})
}

func runForm(ctx context.Context, cfg config.Config, opts command.RunOptions, logger *slog.Logger) error {
	gw, closeStore, err := openGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	controller, err := newSession(ctx, cfg, opts, gw, logger)
	if err != nil {
		_ = closeStore()
		return err
	}
	in, out := opts.In, opts.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	runner := terminal.NewRunner(controller, in, out, logger)

	mgr := lifecycle.NewManager(logger)
	mgr.AddRun("terminal", func(runCtx context.Context) error {
		// Reads from in cannot be interrupted, so cancellation does not wait for them.
		errCh := make(chan error, 1)
		go func() { errCh <- runner.Run(runCtx) }()
		select {
		case err := <-errCh:
			return err
		case <-runCtx.Done():
			return runCtx.Err()
		}
	})
	mgr.AddShutdown("close-storage", func(context.Context) error { return closeStore() })
	mgr.AddShutdown("close-session", func(context.Context) error {
		controller.Close()
		return nil
	})
	return mgr.StartAndWait(ctx)
}

func serveForm(ctx context.Context, cfg config.Config, opts command.RunOptions, logger *slog.Logger) error {
	gw, closeStore, err := openGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	controller, err := newSession(ctx, cfg, opts, gw, logger)
	if err != nil {
		_ = closeStore()
		return err
	}
	server := bridge.NewServer(bridge.Deps{Session: controller, Logger: logger})

	addr := cfg.ListenAddr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("bridge listening", "url", "http://"+addr, "project_id", controller.ProjectID())

	mgr := lifecycle.NewManager(logger)
	mgr.AddRun("http-server", func(runCtx context.Context) error {
		go func() {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	mgr.AddShutdown("close-storage", func(context.Context) error { return closeStore() })
	mgr.AddShutdown("close-session", func(context.Context) error {
		controller.Close()
		return nil
	})
	mgr.AddShutdown("close-bridge", func(context.Context) error {
		server.Close()
		return nil
	})
	mgr.AddShutdown("http-server-shutdown", func(shutdownCtx context.Context) error {
		err := httpServer.Shutdown(shutdownCtx)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	return mgr.StartAndWait(ctx)
}

func runMigrateUp(_ context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.Storage != config.StorageSQLite {
		logger.Info("nothing to migrate", "storage", cfg.Storage)
		return nil
	}
	gdb, err := db.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		return err
	}
	logger.Info("schema up to date", "path", cfg.SQLitePath)
	return db.Close(gdb)
}

func describeStorage(cfg config.Config) string {
	switch cfg.Storage {
	case config.StorageSQLite:
		return "sqlite:" + cfg.SQLitePath
	case config.StorageBadger:
		return "badger:" + cfg.BadgerDir
	case config.StorageRedis:
		return "redis:" + strings.TrimSpace(cfg.RedisAddr)
	}
	return cfg.Storage
}
