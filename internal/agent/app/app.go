// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

// Package app wires the agent components into a long-running daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ccheshirecat/usbvlan/internal/agent/command"
	"github.com/ccheshirecat/usbvlan/internal/agent/config"
	"github.com/ccheshirecat/usbvlan/internal/agent/eventbus/memory"
	"github.com/ccheshirecat/usbvlan/internal/agent/history"
	"github.com/ccheshirecat/usbvlan/internal/agent/httpapi"
	"github.com/ccheshirecat/usbvlan/internal/agent/provisioner"
	"github.com/ccheshirecat/usbvlan/internal/agent/usb"
)

const (
	shutdownTimeout = 10 * time.Second
	storeCloseWait  = 5 * time.Second
	fallbackHistory = 256
)

// NudgeSource returns a channel that fires when the host's link table
// changes. It may return usb.ErrUnsupported.
type NudgeSource func(ctx context.Context, logger *slog.Logger) (<-chan struct{}, error)

// Deps holds the host-facing collaborators of the daemon.
type Deps struct {
	Runner   command.Runner
	Registry usb.Registry
	Nudges   NudgeSource
}

// Daemon coordinates hotplug monitoring, provisioning, history and the
// optional status API.
type Daemon struct {
	cfg    config.Config
	logger *slog.Logger
	deps   Deps
	bus    *memory.Bus
	prov   *provisioner.Provisioner
}

// New constructs a Daemon. The provisioner starts in the absent state.
func New(cfg config.Config, logger *slog.Logger, deps Deps) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}
	bus := memory.New()
	prov, err := provisioner.New(provisioner.Options{
		Runner:             deps.Runner,
		Registry:           deps.Registry,
		Target:             cfg.Target,
		VLAN:               cfg.VLAN,
		Tools:              cfg.Tools,
		StabilizationDelay: cfg.StabilizationDelay,
		Bus:                bus,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init provisioner: %w", err)
	}
	return &Daemon{cfg: cfg, logger: logger, deps: deps, bus: bus, prov: prov}, nil
}

// Status reports the provisioner state.
func (d *Daemon) Status() provisioner.Status {
	return d.prov.Status()
}

// Run blocks until ctx is canceled or the status API fails. Configured VLANs
// are left in place on exit.
func (d *Daemon) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	store := d.openHistory(ctx)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), storeCloseWait)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			d.logger.Warn("close history store", "error", err)
		}
	}()

	recorder := history.NewRecorder(store, d.bus, d.logger)
	recorderDone := make(chan struct{})
	go func() {
		defer close(recorderDone)
		_ = recorder.Run(ctx)
	}()

	evs := d.subscribe(ctx)

	var server *http.Server
	serverErr := make(chan error, 1)
	if d.cfg.HTTPListen != "" {
		server = &http.Server{
			Addr:              d.cfg.HTTPListen,
			Handler:           httpapi.New(d.prov, store, d.bus, d.logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			d.logger.Info("http server starting", "addr", d.cfg.HTTPListen)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
			close(serverErr)
		}()
	}

	provDone := make(chan error, 1)
	go func() { provDone <- d.prov.Run(ctx, evs) }()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serverErr:
		if ok && err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	if server != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := server.Shutdown(shutdownCtx); err != nil && runErr == nil {
			runErr = err
		}
		stop()
	}

	cancel()
	<-provDone
	<-recorderDone
	return runErr
}

func (d *Daemon) openHistory(ctx context.Context) history.Store {
	if d.cfg.DatabasePath == "" {
		return history.NewMemoryStore(fallbackHistory)
	}
	store, err := history.OpenSQLite(ctx, d.cfg.DatabasePath)
	if err != nil {
		d.logger.Warn("history database unavailable; keeping events in memory", "path", d.cfg.DatabasePath, "error", err)
		return history.NewMemoryStore(fallbackHistory)
	}
	return store
}

// subscribe starts the device watcher. A nil channel is returned when the
// subscription fails so the daemon keeps serving without hotplug events.
func (d *Daemon) subscribe(ctx context.Context) <-chan usb.Event {
	var nudge <-chan struct{}
	if d.deps.Nudges != nil {
		ch, err := d.deps.Nudges(ctx, d.logger)
		switch {
		case errors.Is(err, usb.ErrUnsupported):
			d.logger.Debug("link notifications unavailable; polling only")
		case err != nil:
			d.logger.Warn("link notifications unavailable; polling only", "error", err)
		default:
			nudge = ch
		}
	}

	watcher := &usb.PollWatcher{
		Registry: d.deps.Registry,
		Target:   d.cfg.Target,
		Interval: d.cfg.PollInterval,
		Nudge:    nudge,
		Logger:   d.logger,
	}
	evs, err := watcher.Subscribe(ctx)
	if err != nil {
		d.logger.Error("failed to subscribe to usb device notifications", "error", err)
		return nil
	}
	return evs
}
