//go:build windows

// Package signalctl wires OS signals to daemon lifecycle actions. SIGHUP and
// SIGCHLD have no Windows equivalent; this build only handles graceful
// shutdown on interrupt.
package signalctl

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/healerd/healer/internal/config"
	"github.com/healerd/healer/internal/configstore"
	"github.com/healerd/healer/internal/healer"
	"github.com/healerd/healer/internal/monitor"
)

const shutdownDeadline = 5 * time.Second

type Dispatcher struct {
	store      *configstore.Store
	manager    *monitor.Manager
	healer     *healer.Healer
	configPath string
}

func New(store *configstore.Store, mgr *monitor.Manager, h *healer.Healer, configPath string) *Dispatcher {
	return &Dispatcher{store: store, manager: mgr, healer: h, configPath: configPath}
}

func (d *Dispatcher) Run(ctx context.Context) {
	sigc := make(chan os.Signal, 8)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigc)

	select {
	case <-ctx.Done():
	case <-sigc:
		d.shutdown()
	}
}

func (d *Dispatcher) reload() {
	cfg, err := config.Load(d.configPath)
	if err != nil {
		slog.Error("signal dispatcher: config reload failed, retaining previous config", "error", err)
		return
	}
	d.store.Store(cfg)
	d.manager.Reconcile(cfg.Processes)
	d.healer.SetSpecs(cfg.Processes)
	slog.Info("signal dispatcher: config reloaded")
}

func (d *Dispatcher) shutdown() {
	slog.Info("signal dispatcher: shutting down")
	d.manager.Shutdown()

	done := make(chan struct{})
	go func() {
		d.healer.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownDeadline):
		slog.Warn("signal dispatcher: healer drain deadline exceeded, exiting anyway")
	}
}
