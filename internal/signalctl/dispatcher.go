//go:build !windows

// Package signalctl wires OS signals to daemon lifecycle actions: config
// hot-reload on SIGHUP, graceful shutdown on SIGTERM/SIGINT, and zombie
// reaping on SIGCHLD.
package signalctl

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/healerd/healer/internal/config"
	"github.com/healerd/healer/internal/configstore"
	"github.com/healerd/healer/internal/healer"
	"github.com/healerd/healer/internal/monitor"
)

const shutdownDeadline = 5 * time.Second

// Dispatcher owns the signal channel and the handlers it drives.
type Dispatcher struct {
	store      *configstore.Store
	manager    *monitor.Manager
	healer     *healer.Healer
	configPath string
}

func New(store *configstore.Store, mgr *monitor.Manager, h *healer.Healer, configPath string) *Dispatcher {
	return &Dispatcher{store: store, manager: mgr, healer: h, configPath: configPath}
}

// Run blocks, dispatching signals until SIGTERM or SIGINT triggers a
// graceful shutdown, at which point it returns. It also returns, without
// running the shutdown sequence, once ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	sigc := make(chan os.Signal, 8)
	signal.Notify(sigc, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT, syscall.SIGCHLD)
	defer signal.Stop(sigc)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigc:
			switch sig {
			case syscall.SIGHUP:
				d.reload()
			case syscall.SIGCHLD:
				reapChildren()
			case syscall.SIGTERM, syscall.SIGINT:
				d.shutdown()
				return
			}
		}
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

// reapChildren performs a non-blocking waitpid loop until no more children
// are immediately reapable. Required because recovery spawns are fire and
// forget and never call Wait themselves.
func reapChildren() {
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return
		}
		slog.Debug("signal dispatcher: reaped child", "pid", pid)
	}
}
