// Package lifecycle runs the long-lived jobs of a command (the bridge HTTP
// server, the terminal loop) and the cleanup that follows them.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"landform/internal/logging"
)

const DefaultShutdownTimeout = 5 * time.Second

type job struct {
	name string
	run  func(context.Context) error
}

type Manager struct {
	mu              sync.Mutex
	runJobs         []job
	shutdownJobs    []job
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{logger: logger, shutdownTimeout: DefaultShutdownTimeout}
}

// AddRun registers a job that runs until ctx is cancelled. The first job to
// fail, or to return at all, stops the others.
func (m *Manager) AddRun(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.runJobs = append(m.runJobs, job{name: name, run: fn})
	m.mu.Unlock()
}

// AddShutdown registers cleanup. Shutdown jobs run in reverse order of
// registration once every run job has returned.
func (m *Manager) AddShutdown(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.shutdownJobs = append(m.shutdownJobs, job{name: name, run: fn})
	m.mu.Unlock()
}

func (m *Manager) StartAndWait(parent context.Context, sig ...os.Signal) error {
	ctx := parent
	stopSignal := func() {}
	if len(sig) > 0 {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(parent, sig...)
		stopSignal = stop
	}
	defer stopSignal()

	runCtx, cancelRuns := context.WithCancel(ctx)
	defer cancelRuns()

	runJobs, shutdownJobs := m.snapshot()

	errCh := make(chan error, len(runJobs))
	var wg sync.WaitGroup
	for _, j := range runJobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.logger.Debug("job started", "job", j.name)
			err := j.run(runCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("%s: %w", j.name, err)
			}
			m.logger.Debug("job stopped", "job", j.name)
			cancelRuns()
		}()
	}

	doneCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		m.logger.Info("shutting down", "reason", context.Cause(ctx))
		cancelRuns()
	case err := <-errCh:
		runErr = err
		m.logger.Error("job failed", "err", err)
		cancelRuns()
	case <-doneCh:
	}

	<-doneCh
	if runErr == nil {
		select {
		case runErr = <-errCh:
		default:
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
	defer cancel()
	var shutdownErr error
	for i := len(shutdownJobs) - 1; i >= 0; i-- {
		j := shutdownJobs[i]
		if err := j.run(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Warn("shutdown job failed", "job", j.name, "err", err)
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("%s: %w", j.name, err))
		}
	}
	return errors.Join(runErr, shutdownErr)
}

func (m *Manager) snapshot() (runs, shutdowns []job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]job(nil), m.runJobs...), append([]job(nil), m.shutdownJobs...)
}
