// Package runtime is the composition root: it wires configuration, the
// event bus, the Monitor Manager, the Healer, and the Signal Dispatcher
// into one running daemon.
package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/healerd/healer/internal/bus"
	"github.com/healerd/healer/internal/config"
	"github.com/healerd/healer/internal/configstore"
	"github.com/healerd/healer/internal/healer"
	"github.com/healerd/healer/internal/logger"
	"github.com/healerd/healer/internal/monitor"
	"github.com/healerd/healer/internal/signalctl"
	"github.com/healerd/healer/internal/spawn"
)

const busCapacity = 1024

// Options controls how Run composes the daemon.
type Options struct {
	ConfigPath string
	Foreground bool
}

// Run loads the configuration, wires every component, and blocks until the
// Signal Dispatcher completes a graceful shutdown or ctx is done.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("runtime: load config: %w", err)
	}

	if err := logger.Init(cfg.LogLevel, cfg.LogDirectory, opts.Foreground); err != nil {
		return fmt.Errorf("runtime: init logger: %w", err)
	}

	store := configstore.New(cfg)

	b := bus.New(busCapacity)
	defer b.Close()

	spawner := &spawn.ProcessSpawner{Store: store}
	h := healer.New(spawner)
	h.SetSpecs(cfg.Processes)

	mgr := monitor.NewManager(b, cfg.EBPFObjectPath)
	mgr.Reconcile(cfg.Processes)

	recv := b.Subscribe()
	go h.Run(ctx, recv)

	slog.Info("healerd started", "processes", len(cfg.Processes), "config", opts.ConfigPath)

	d := signalctl.New(store, mgr, h, opts.ConfigPath)
	d.Run(ctx)

	slog.Info("healerd stopped")
	return nil
}
