package monitor

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/healerd/healer/internal/bus"
	"github.com/healerd/healer/internal/spec"
)

// handle tracks one running monitor task so Reconcile can cancel and await
// it independently of every other task.
type handle struct {
	cancel      context.CancelFunc
	fingerprint uint64
	group       *errgroup.Group
	ebpfComm    string // non-empty for Ebpf-variant handles
}

// Manager reconciles the live set of monitor tasks against a declared
// configuration. A single shared EBPFMonitor services every Ebpf-variant
// spec: cancelling an eBPF handle removes that name from the shared filter
// map, and the shared monitor itself is torn down once no Ebpf-variant spec
// remains desired, so the tracepoint link stays attached only while at least
// one such spec is configured.
type Manager struct {
	bus *bus.Bus

	mu         sync.Mutex
	running    map[string]*handle
	ebpf       *EBPFMonitor
	ebpfOnce   *sync.Once
	ebpfCancel context.CancelFunc
	ebpfPath   string
}

func NewManager(b *bus.Bus, ebpfObjectPath string) *Manager {
	return &Manager{
		bus:      b,
		running:  make(map[string]*handle),
		ebpfOnce: &sync.Once{},
		ebpfPath: ebpfObjectPath,
	}
}

// Reconcile drives the running set to exactly the enabled specs in specs.
// Idempotent: calling it twice with the same input performs no cancellations
// the second time.
func (m *Manager) Reconcile(specs []spec.ProcessSpec) {
	m.mu.Lock()
	defer m.mu.Unlock()

	desired := make(map[string]spec.ProcessSpec, len(specs))
	for _, s := range specs {
		if s.Enabled {
			desired[s.Name] = s
		}
	}

	for name, h := range m.running {
		if _, ok := desired[name]; !ok {
			m.cancelLocked(name, h)
		}
	}

	for name, s := range desired {
		h, ok := m.running[name]
		if !ok {
			m.spawnLocked(s)
			continue
		}
		fp := s.Monitor.Fingerprint()
		if fp != h.fingerprint {
			m.cancelLocked(name, h)
			m.spawnLocked(s)
		}
	}
}

// Shutdown cancels every running monitor task and awaits join.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, h := range m.running {
		m.cancelLocked(name, h)
	}
}

func (m *Manager) cancelLocked(name string, h *handle) {
	h.cancel()
	if err := h.group.Wait(); err != nil {
		slog.Warn("monitor manager: task exited with error", "name", name, "error", err)
	}
	delete(m.running, name)
	if h.ebpfComm != "" && m.ebpf != nil {
		m.ebpf.RemoveName(h.ebpfComm)
		if !m.anyEBPFDesiredLocked() {
			m.teardownEBPFLocked()
		}
	}
}

// anyEBPFDesiredLocked reports whether any currently running handle still
// needs the shared eBPF monitor.
func (m *Manager) anyEBPFDesiredLocked() bool {
	for _, h := range m.running {
		if h.ebpfComm != "" {
			return true
		}
	}
	return false
}

// teardownEBPFLocked stops the shared eBPF monitor's perf-reader goroutine
// and detaches its tracepoint once no Ebpf-variant spec needs it, so the
// tracepoint link stays attached only while at least one such spec is
// desired. ebpfOnce is reset so a later Ebpf spec re-attaches from scratch.
func (m *Manager) teardownEBPFLocked() {
	if m.ebpfCancel != nil {
		m.ebpfCancel()
	}
	m.ebpf = nil
	m.ebpfCancel = nil
	m.ebpfOnce = &sync.Once{}
}

func (m *Manager) spawnLocked(s spec.ProcessSpec) {
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)

	switch s.Monitor.Type {
	case spec.MonitorPID:
		mon := NewPIDMonitor(s.Name, *s.Monitor.PID, m.bus)
		g.Go(func() error {
			mon.Run(gctx)
			return nil
		})
	case spec.MonitorNetwork:
		mon := NewNetworkMonitor(s.Name, *s.Monitor.Network, m.bus)
		g.Go(func() error {
			mon.Run(gctx)
			return nil
		})
	case spec.MonitorEBPF:
		m.ensureEBPFLocked()
		truncated := s.Monitor.EBPF.TruncatedComm()
		m.ebpf.AddName(truncated, s.Name)
		g.Go(func() error {
			<-gctx.Done()
			return nil
		})
		m.running[s.Name] = &handle{cancel: cancel, fingerprint: s.Monitor.Fingerprint(), group: g, ebpfComm: truncated}
		return
	default:
		slog.Error("monitor manager: unknown monitor type, skipping", "name", s.Name, "type", s.Monitor.Type)
		cancel()
		return
	}

	m.running[s.Name] = &handle{cancel: cancel, fingerprint: s.Monitor.Fingerprint(), group: g}
}

// ensureEBPFLocked lazily starts the shared eBPF monitor on first use. The
// monitor's own Run loop is launched once and outlives individual
// reconciles; a load/attach failure is logged and the monitor is left
// started-but-broken so it does not repeatedly retry a hopeless attach.
func (m *Manager) ensureEBPFLocked() {
	m.ebpfOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		mon := NewEBPFMonitor(m.ebpfPath, m.bus)
		m.ebpf = mon
		m.ebpfCancel = cancel
		go func() {
			if err := mon.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("monitor manager: ebpf monitor failed to start", "error", err)
			}
		}()
	})
}
