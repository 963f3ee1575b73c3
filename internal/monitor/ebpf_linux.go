//go:build linux

package monitor

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/perf"
	"github.com/cilium/ebpf/rlimit"

	"github.com/healerd/healer/internal/bus"
	"github.com/healerd/healer/internal/event"
	"github.com/healerd/healer/internal/spec"
)

// exitEventProgram and exitEventsMap are the symbol names the prebuilt BPF
// object is expected to export: a single program attached to the
// sched_process_exit tracepoint and a perf event array it writes exit
// records to.
const (
	exitEventProgram = "handle_sched_process_exit"
	exitEventsMap    = "exit_events"
)

// exitRecord mirrors the fixed layout written by the BPF program: pid, tgid,
// and the kernel's TASK_COMM_LEN comm buffer.
type exitRecord struct {
	PID  uint32
	TGID uint32
	Comm [spec.TaskCommLen]byte
}

// EBPFMonitor loads a prebuilt BPF object, attaches sched:sched_process_exit,
// and republishes exit records whose comm matches a configured process
// name. A single EBPFMonitor instance services every Ebpf-variant
// ProcessSpec; the Monitor Manager adds/removes names from its
// userspace filter map as specs come and go, without re-attaching.
type EBPFMonitor struct {
	objectPath string
	bus        *bus.Bus

	mu    sync.RWMutex
	names map[string]string // truncated comm -> configured name
}

func NewEBPFMonitor(objectPath string, b *bus.Bus) *EBPFMonitor {
	return &EBPFMonitor{objectPath: objectPath, bus: b, names: make(map[string]string)}
}

// AddName registers a configured process name under its truncated comm key.
func (m *EBPFMonitor) AddName(truncatedComm, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[truncatedComm] = name
}

// RemoveName unregisters a truncated comm key.
func (m *EBPFMonitor) RemoveName(truncatedComm string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.names, truncatedComm)
}

// Run loads and attaches the BPF program and drains the perf ring buffer
// until ctx is cancelled. A load/attach failure is returned to the caller,
// which the Monitor Manager treats as fatal to this monitor only.
func (m *EBPFMonitor) Run(ctx context.Context) error {
	if err := rlimit.RemoveMemlock(); err != nil {
		return fmt.Errorf("ebpf: remove memlock rlimit: %w", err)
	}

	f, err := os.Open(m.objectPath)
	if err != nil {
		return fmt.Errorf("ebpf: open object %s: %w", m.objectPath, err)
	}
	defer f.Close()

	collSpec, err := ebpf.LoadCollectionSpecFromReader(f)
	if err != nil {
		return fmt.Errorf("ebpf: parse object: %w", err)
	}

	coll, err := ebpf.NewCollectionWithOptions(collSpec, ebpf.CollectionOptions{})
	if err != nil {
		return fmt.Errorf("ebpf: load collection: %w", err)
	}
	defer coll.Close()

	prog, ok := coll.Programs[exitEventProgram]
	if !ok {
		return fmt.Errorf("ebpf: object missing program %q", exitEventProgram)
	}

	tp, err := link.Tracepoint("sched", "sched_process_exit", prog, nil)
	if err != nil {
		return fmt.Errorf("ebpf: attach sched_process_exit tracepoint: %w", err)
	}
	defer tp.Close()

	eventsMap, ok := coll.Maps[exitEventsMap]
	if !ok {
		return fmt.Errorf("ebpf: object missing map %q", exitEventsMap)
	}

	rd, err := perf.NewReader(eventsMap, os.Getpagesize()*64)
	if err != nil {
		return fmt.Errorf("ebpf: open perf reader: %w", err)
	}
	defer rd.Close()

	go func() {
		<-ctx.Done()
		_ = rd.Close()
	}()

	for {
		record, err := rd.Read()
		if err != nil {
			if errors.Is(err, perf.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			slog.Warn("ebpf monitor: perf read error", "error", err)
			continue
		}
		if record.LostSamples > 0 {
			slog.Warn("ebpf monitor: lost samples", "count", record.LostSamples)
		}
		m.handleRecord(record.RawSample)
	}
}

func (m *EBPFMonitor) handleRecord(raw []byte) {
	var rec exitRecord
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &rec); err != nil {
		slog.Warn("ebpf monitor: decode error", "error", err)
		return
	}
	comm := strings.TrimRight(string(rec.Comm[:]), "\x00")

	m.mu.RLock()
	name, ok := m.names[comm]
	m.mu.RUnlock()
	if !ok {
		return
	}
	m.bus.Publish(event.ProcessEvent{Kind: event.ProcessDown, Name: name, PID: int(rec.PID)})
}
