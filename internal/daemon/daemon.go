// Package daemon ties the coordination core together behind a single-instance
// background process: it owns the daemon lock, the HTTP API server, and the
// startup reference recovery pass.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"montage/internal/config"
	"montage/internal/generation"
	"montage/internal/logging"
	"montage/internal/projectstore"
	"montage/internal/refcache"
	"montage/internal/renderjobs"
	"montage/internal/tasks"
)

// Core bundles the coordination components the daemon serves.
type Core struct {
	Store     *projectstore.Store
	Registry  *tasks.Registry
	Cache     *refcache.Cache
	Queue     *renderjobs.Queue
	Generator *generation.Service
}

func (c Core) validate() error {
	if c.Store == nil || c.Registry == nil || c.Cache == nil || c.Queue == nil {
		return errors.New("daemon requires store, registry, cache, and render queue")
	}
	return nil
}

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	core   Core

	lockPath string
	lock     *flock.Flock

	api     *apiServer
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	LibraryDir   string
	LockFilePath string
	Projects     int
	LiveTasks    int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, core Core, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	if err := core.validate(); err != nil {
		return nil, err
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "montaged.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		core:     core,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d)
	return d, nil
}

// Start acquires the daemon lock, brings up the API server, and kicks off
// reference recovery when configured.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another montage daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	if d.cfg.Recovery.RunAtStartup {
		go d.runRecovery(d.ctx)
	}

	d.running.Store(true)
	d.logger.Info("montage daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts down the API server, waits for in-flight renders, and releases
// the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.core.Queue.Close()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.String(logging.FieldEventType, "lock_release_failed"),
			logging.String(logging.FieldImpact, "a stale lock file may block the next daemon start"),
			logging.String(logging.FieldErrorHint, "Remove the lock file if no daemon process is running"),
			logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("montage daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// APIAddr returns the bound API listener address, empty before Start.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Status reports daemon runtime information.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LibraryDir:   d.cfg.Paths.LibraryDir,
		LockFilePath: d.lockPath,
		LiveTasks:    d.core.Registry.Live(),
	}
	if ids, err := d.core.Store.List(ctx); err == nil {
		status.Projects = len(ids)
	}
	return status
}
