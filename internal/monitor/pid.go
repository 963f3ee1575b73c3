// Package monitor implements the liveness-detection tasks (PID, Network,
// eBPF) and the Monitor Manager that reconciles them with the declared
// configuration.
package monitor

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/healerd/healer/internal/bus"
	"github.com/healerd/healer/internal/event"
	"github.com/healerd/healer/internal/spec"
)

// PIDMonitor polls a PID file and publishes ProcessDown once an observed
// absence has persisted across one full poll interval.
type PIDMonitor struct {
	name     string
	path     string
	interval time.Duration
	bus      *bus.Bus
}

func NewPIDMonitor(name string, m spec.PIDMonitor, b *bus.Bus) *PIDMonitor {
	return &PIDMonitor{
		name:     name,
		path:     m.PIDFilePath,
		interval: time.Duration(m.IntervalSecs) * time.Second,
		bus:      b,
	}
}

// Run polls until ctx is cancelled.
func (m *PIDMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	wasAlive := false
	lastPID := 0
	absentStreak := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pid, alive, err := m.probe()
		if err != nil && !os.IsNotExist(err) {
			slog.Debug("pid monitor: read error", "name", m.name, "error", err)
		}

		if alive {
			wasAlive = true
			lastPID = pid
			absentStreak = 0
			continue
		}

		if !wasAlive {
			continue
		}

		absentStreak++
		if absentStreak < 2 {
			continue
		}

		m.bus.Publish(event.ProcessEvent{Kind: event.ProcessDown, Name: m.name, PID: lastPID})
		wasAlive = false
		absentStreak = 0
	}
}

func (m *PIDMonitor) probe() (pid int, alive bool, err error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return 0, false, err
	}
	pid, err = parsePID(data)
	if err != nil || pid <= 0 {
		return 0, false, err
	}
	exists, err := process.PidExists(int32(pid))
	if err != nil {
		return pid, false, err
	}
	return pid, exists, nil
}

// parsePID parses the first non-whitespace decimal token in data.
func parsePID(data []byte) (int, error) {
	fields := bytes.Fields(data)
	if len(fields) == 0 {
		return 0, nil
	}
	return strconv.Atoi(string(fields[0]))
}
