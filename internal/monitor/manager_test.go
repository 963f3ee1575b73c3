package monitor

import (
	"testing"
	"time"

	"github.com/healerd/healer/internal/bus"
	"github.com/healerd/healer/internal/spec"
)

func pidSpec(name, path string) spec.ProcessSpec {
	return spec.ProcessSpec{
		Name:    name,
		Enabled: true,
		Monitor: spec.MonitorSpec{Type: spec.MonitorPID, PID: &spec.PIDMonitor{PIDFilePath: path, IntervalSecs: 1}},
	}
}

func ebpfSpec(name, process string) spec.ProcessSpec {
	return spec.ProcessSpec{
		Name:    name,
		Enabled: true,
		Monitor: spec.MonitorSpec{Type: spec.MonitorEBPF, EBPF: &spec.EBPFMonitor{ProcessName: process}},
	}
}

func TestReconcileTearsDownSharedEBPFMonitorOnceNoneDesired(t *testing.T) {
	m := NewManager(bus.New(8), "/nonexistent.o")

	m.Reconcile([]spec.ProcessSpec{ebpfSpec("svc-a", "svc-a"), ebpfSpec("svc-b", "svc-b")})
	m.mu.Lock()
	if m.ebpf == nil {
		t.Fatalf("expected shared eBPF monitor to be started")
	}
	firstOnce := m.ebpfOnce
	m.mu.Unlock()

	m.Reconcile([]spec.ProcessSpec{ebpfSpec("svc-a", "svc-a")})
	m.mu.Lock()
	if m.ebpf == nil {
		t.Fatalf("expected shared eBPF monitor to remain attached while svc-a is still desired")
	}
	m.mu.Unlock()

	m.Reconcile(nil)
	m.mu.Lock()
	if m.ebpf != nil {
		t.Fatalf("expected shared eBPF monitor to be torn down once no Ebpf spec remains desired")
	}
	if m.ebpfOnce == firstOnce {
		t.Fatalf("expected ebpfOnce to be reset so a later Ebpf spec re-attaches")
	}
	m.mu.Unlock()

	m.Reconcile([]spec.ProcessSpec{ebpfSpec("svc-c", "svc-c")})
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ebpf == nil {
		t.Fatalf("expected the shared eBPF monitor to restart for a later Ebpf spec")
	}
}

func TestReconcileStartsAndStopsTasks(t *testing.T) {
	m := NewManager(bus.New(8), "/nonexistent.o")

	m.Reconcile([]spec.ProcessSpec{pidSpec("alpha", "/tmp/a.pid")})
	m.mu.Lock()
	if len(m.running) != 1 {
		t.Fatalf("expected 1 running task, got %d", len(m.running))
	}
	m.mu.Unlock()

	m.Reconcile(nil)
	m.mu.Lock()
	if len(m.running) != 0 {
		t.Fatalf("expected 0 running tasks after removal, got %d", len(m.running))
	}
	m.mu.Unlock()
}

func TestReconcileIsIdempotent(t *testing.T) {
	m := NewManager(bus.New(8), "/nonexistent.o")
	specs := []spec.ProcessSpec{pidSpec("alpha", "/tmp/a.pid")}

	m.Reconcile(specs)
	m.mu.Lock()
	h := m.running["alpha"]
	m.mu.Unlock()

	m.Reconcile(specs)
	m.mu.Lock()
	h2 := m.running["alpha"]
	m.mu.Unlock()

	if h != h2 {
		t.Fatalf("expected reconcile with unchanged specs to leave the handle untouched")
	}
}

func TestReconcileRespawnsOnFingerprintChange(t *testing.T) {
	m := NewManager(bus.New(8), "/nonexistent.o")

	m.Reconcile([]spec.ProcessSpec{pidSpec("alpha", "/tmp/a.pid")})
	m.mu.Lock()
	h := m.running["alpha"]
	m.mu.Unlock()

	m.Reconcile([]spec.ProcessSpec{pidSpec("alpha", "/tmp/b.pid")})
	m.mu.Lock()
	h2 := m.running["alpha"]
	m.mu.Unlock()

	if h == h2 {
		t.Fatalf("expected a changed monitor fingerprint to trigger respawn")
	}
}

func TestShutdownStopsAllTasks(t *testing.T) {
	m := NewManager(bus.New(8), "/nonexistent.o")
	m.Reconcile([]spec.ProcessSpec{pidSpec("alpha", "/tmp/a.pid"), pidSpec("beta", "/tmp/b.pid")})

	done := make(chan struct{})
	go func() {
		m.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("shutdown did not return in time")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.running) != 0 {
		t.Fatalf("expected no running tasks after shutdown, got %d", len(m.running))
	}
}
