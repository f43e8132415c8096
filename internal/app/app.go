// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app wires every engine component together into one running
// daemon, grounded on trellis internal/app.App's
// New/Initialize/Start/Run/Shutdown lifecycle — shrunk from trellis's
// dozen managers down to the unit engine's own collaborators (unit
// table, supervisor, activation engine, socket-activation loop,
// control surfaces) and, in Run, the pid-1 emergency-shell fallback
// original_source's service_manager.rs applies to an unrecoverable
// startup error.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/KillingSpark/unitd/internal/activation"
	"github.com/KillingSpark/unitd/internal/config"
	"github.com/KillingSpark/unitd/internal/control"
	"github.com/KillingSpark/unitd/internal/control/statusapi"
	"github.com/KillingSpark/unitd/internal/events"
	"github.com/KillingSpark/unitd/internal/fdstore"
	"github.com/KillingSpark/unitd/internal/graph"
	"github.com/KillingSpark/unitd/internal/logging"
	"github.com/KillingSpark/unitd/internal/pidtable"
	"github.com/KillingSpark/unitd/internal/socketact"
	"github.com/KillingSpark/unitd/internal/supervisor"
	"github.com/KillingSpark/unitd/internal/unit"
	"github.com/KillingSpark/unitd/internal/unittable"
)

// Options holds the command-line options that shape a run.
type Options struct {
	ConfigPath string
	DryRun     bool
}

// App is the running daemon: every long-lived collaborator plus
// enough bookkeeping to shut them all down in the right order.
type App struct {
	mu sync.Mutex

	opts Options
	cfg  *config.Config

	eventBus   events.EventBus
	table      *unittable.Table
	pids       *pidtable.Table
	fds        *fdstore.Store
	supervisor *supervisor.Supervisor
	engine     *activation.Engine
	socketLoop *socketact.Loop
	watcher    *config.DirWatcher
	logCloser  func() error

	controlServer *control.Server
	statusServer  *statusapi.Server
	signals       *control.SignalHandler

	socketCtx    context.Context
	cancelSocket context.CancelFunc

	done     chan struct{}
	stopOnce sync.Once
}

// New loads and validates configuration but does not start anything.
func New(opts Options) (*App, error) {
	loader := config.NewLoader()
	cfg, err := loader.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("app: load config: %w", err)
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, fmt.Errorf("app: invalid config: %w", err)
	}

	return &App{
		opts: opts,
		cfg:  cfg,
		done: make(chan struct{}),
	}, nil
}

// Initialize loads every unit file, builds the dependency graph, and
// constructs (without starting) every collaborator. Grounded on
// original_source's prepare_runtimeinfo: load, sanity-check, then (for
// --dry-run) stop before anything is started.
func (app *App) Initialize(ctx context.Context) error {
	logCloser, err := logging.Setup(app.cfg.Logging.Dir)
	if err != nil {
		return fmt.Errorf("app: logging setup: %w", err)
	}
	app.logCloser = logCloser.Close

	units, err := loadAllUnitDirs(app.cfg.UnitDirs)
	if err != nil {
		return fmt.Errorf("app: load units: %w", err)
	}

	targetId, ok := unit.NewId(app.cfg.TargetUnit)
	if !ok {
		return fmt.Errorf("app: invalid target unit name: %s", app.cfg.TargetUnit)
	}

	if err := graph.Build(units); err != nil {
		return fmt.Errorf("app: build dependency graph: %w", err)
	}

	removed, err := graph.Prune(units, targetId)
	if err != nil {
		return fmt.Errorf("app: prune to target %s: %w", targetId, err)
	}
	if len(removed) > 0 {
		log.Printf("app: %d unit(s) outside %s's dependency closure not loaded", len(removed), targetId)
	}

	if cycles := graph.DetectCycles(units); len(cycles) > 0 {
		for _, cycle := range cycles {
			log.Printf("app: dependency cycle: %v", cycle)
		}
		return fmt.Errorf("app: %d dependency cycle(s) found", len(cycles))
	}

	if err := config.NewValidator().ValidateUnits(app.cfg, units); err != nil {
		return fmt.Errorf("app: invalid unit graph: %w", err)
	}

	if app.opts.DryRun {
		log.Printf("app: --dry-run given, exiting after successful load of %d units", len(units))
		return errDryRun
	}

	app.table = unittable.New()
	for _, u := range units {
		if err := app.table.Add(u); err != nil {
			return fmt.Errorf("app: add unit %s: %w", u.Id, err)
		}
	}

	app.eventBus = events.NewMemoryEventBus(events.MemoryBusConfig{})

	app.pids = pidtable.New()
	app.fds = fdstore.New()

	selfExe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("app: resolve self executable: %w", err)
	}
	app.supervisor = supervisor.New(selfExe, app.cfg.NotificationSocketsDir, app.pids, app.fds)
	app.engine = activation.New(app.table, app.supervisor, app.fds, activation.DefaultWorkers)

	loop, err := socketact.New(app.table, app.fds, app.engine)
	if err != nil {
		return fmt.Errorf("app: build socket-activation loop: %w", err)
	}
	app.socketLoop = loop

	app.watcher, err = config.NewDirWatcher(app.eventBus, 0)
	if err != nil {
		return fmt.Errorf("app: build directory watcher: %w", err)
	}

	dispatcher := &control.Dispatcher{
		Table:      app.table,
		Engine:     app.engine,
		Config:     app.cfg,
		Bus:        app.eventBus,
		OnShutdown: func() { app.RequestShutdown() },
	}
	app.watcher.OnReload = func() {
		if _, rpcErr := dispatcher.Dispatch("reload", nil); rpcErr != nil {
			log.Printf("app: config reload failed: %s", rpcErr.Message)
		}
	}
	app.controlServer = control.NewServer(dispatcher)
	app.statusServer = statusapi.NewServer(app.cfg.StatusAPIAddr, statusapi.Dependencies{
		Table: app.table,
		Bus:   app.eventBus,
	})
	app.signals = control.NewSignalHandler()

	return nil
}

// errDryRun signals a clean, intentional stop after Initialize; Run
// treats it as success rather than an unrecoverable startup error.
var errDryRun = fmt.Errorf("app: dry run complete")

// Start opens the control surfaces, begins watching for socket
// activity, and activates every unit reachable from target_unit.
func (app *App) Start(ctx context.Context) error {
	notifyDir := app.cfg.NotificationSocketsDir
	if err := os.MkdirAll(notifyDir, 0o755); err != nil {
		return fmt.Errorf("app: create notification socket dir: %w", err)
	}

	if err := app.controlServer.ListenUnix(filepath.Join(notifyDir, "control.socket")); err != nil {
		return fmt.Errorf("app: listen on control socket: %w", err)
	}
	if err := app.controlServer.ListenTCP("127.0.0.1:8080"); err != nil {
		return fmt.Errorf("app: listen on control tcp: %w", err)
	}
	app.controlServer.Serve()

	go func() {
		if err := app.statusServer.ListenAndServe(); err != nil {
			log.Printf("app: status API stopped: %v", err)
		}
	}()

	app.socketCtx, app.cancelSocket = context.WithCancel(context.Background())
	go func() {
		if err := app.socketLoop.Run(app.socketCtx); err != nil {
			log.Printf("app: socket-activation loop stopped: %v", err)
		}
	}()

	for _, dir := range app.cfg.UnitDirs {
		if err := app.watcher.Watch(dir); err != nil {
			log.Printf("app: watch unit dir %s: %v", dir, err)
		}
	}

	roots := activation.Roots(app.table)
	if errs := app.engine.ActivateAll(roots); len(errs) > 0 {
		for _, err := range errs {
			log.Printf("app: activation error: %v", err)
		}
	}

	return nil
}

// Run initializes, starts, and blocks until a shutdown signal (SIGTERM
// SIGINT, the "shutdown" control method, or ctx cancellation) arrives,
// then shuts everything back down in reverse order.
func (app *App) Run(ctx context.Context) error {
	if err := app.Initialize(ctx); err != nil {
		if err == errDryRun {
			return nil
		}
		app.unrecoverable(err)
		return err
	}

	if err := app.Start(ctx); err != nil {
		app.unrecoverable(err)
		return err
	}

	go app.signals.Run(func() { app.RequestShutdown() })

	select {
	case <-ctx.Done():
		log.Printf("app: context cancelled, shutting down")
	case <-app.done:
		log.Printf("app: shutdown requested")
	}

	return app.Shutdown(context.Background())
}

// RequestShutdown triggers an orderly shutdown from any goroutine; safe
// to call more than once.
func (app *App) RequestShutdown() {
	app.stopOnce.Do(func() { close(app.done) })
}

// Shutdown tears down every unit and every long-lived collaborator.
func (app *App) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	if app.signals != nil {
		app.signals.Stop()
	}
	if app.engine != nil {
		for _, err := range app.engine.ShutdownAll() {
			log.Printf("app: shutdown error: %v", err)
		}
	}
	if app.cancelSocket != nil {
		app.cancelSocket()
	}
	if app.controlServer != nil {
		if err := app.controlServer.Close(); err != nil {
			log.Printf("app: error closing control server: %v", err)
		}
	}
	if app.statusServer != nil {
		if err := app.statusServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("app: error shutting down status API: %v", err)
		}
	}
	if app.watcher != nil {
		if err := app.watcher.Close(); err != nil {
			log.Printf("app: error closing directory watcher: %v", err)
		}
	}
	if app.logCloser != nil {
		if err := app.logCloser(); err != nil {
			log.Printf("app: error closing log file: %v", err)
		}
	}
	return nil
}

// unrecoverable mirrors original_source's unrecoverable_error: as pid
// 1 there is nobody left to hand control back to, so it spawns an
// emergency shell and blocks on it rather than letting the kernel
// panic when pid 1 exits.
func (app *App) unrecoverable(cause error) {
	log.Printf("app: unrecoverable error: %v", cause)
	if os.Getpid() != 1 {
		return
	}

	shellPath := findShell()
	if shellPath == "" {
		log.Printf("app: running as pid 1 with no shell found for emergency recovery")
		time.Sleep(10 * time.Second)
		return
	}

	log.Printf("app: running as pid 1, spawning emergency shell %s", shellPath)
	cmd := exec.Command(shellPath)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		log.Printf("app: emergency shell exited with error: %v", err)
	}
}

func findShell() string {
	for _, p := range []string{"/bin/sh", "/sbin/sh", "/usr/bin/sh"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// loadAllUnitDirs merges LoadUnitDir's output across every configured
// unit directory into one id-keyed map, erroring on a name collision
// across directories the same way a collision within one directory does.
func loadAllUnitDirs(dirs []string) (map[unit.Id]*unit.Unit, error) {
	all := make(map[unit.Id]*unit.Unit)
	for _, dir := range dirs {
		units, err := config.LoadUnitDir(dir)
		if err != nil {
			return nil, err
		}
		for id, u := range units {
			if _, dup := all[id]; dup {
				return nil, fmt.Errorf("app: duplicate unit %s across unit dirs", id)
			}
			all[id] = u
		}
	}
	return all, nil
}
