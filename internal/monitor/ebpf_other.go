//go:build !linux

package monitor

import (
	"context"
	"fmt"

	"github.com/healerd/healer/internal/bus"
)

// EBPFMonitor is unavailable outside Linux; sched_process_exit is a Linux
// tracepoint and has no portable equivalent.
type EBPFMonitor struct{}

func NewEBPFMonitor(objectPath string, b *bus.Bus) *EBPFMonitor {
	return &EBPFMonitor{}
}

func (m *EBPFMonitor) AddName(truncatedComm, name string) {}
func (m *EBPFMonitor) RemoveName(truncatedComm string)    {}

func (m *EBPFMonitor) Run(ctx context.Context) error {
	return fmt.Errorf("ebpf monitor requires linux")
}
