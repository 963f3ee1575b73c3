// Package spec defines the declared-configuration data model: the set of
// processes Healer supervises, how each is monitored for liveness, and how
// each is recovered when it goes down.
package spec

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// MonitorType discriminates the MonitorSpec tagged union.
type MonitorType string

const (
	MonitorPID     MonitorType = "pid"
	MonitorNetwork MonitorType = "network"
	MonitorEBPF    MonitorType = "ebpf"
)

// TaskCommLen is the kernel's TASK_COMM_LEN; configured eBPF process names are
// truncated to TaskCommLen-1 bytes to match what the tracepoint record carries.
const TaskCommLen = 16

// PIDMonitor polls a PID file for liveness.
type PIDMonitor struct {
	PIDFilePath  string `mapstructure:"pid_file_path"`
	IntervalSecs int    `mapstructure:"interval_secs"`
}

// NetworkMonitor probes a TCP/HTTP endpoint for reachability.
type NetworkMonitor struct {
	URL          string `mapstructure:"url"`
	IntervalSecs int    `mapstructure:"interval_secs"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// EBPFMonitor identifies a process by its kernel comm for exit-tracepoint detection.
type EBPFMonitor struct {
	ProcessName string `mapstructure:"process_name"`
}

// TruncatedComm returns the process name truncated to the kernel's comm limit.
func (e EBPFMonitor) TruncatedComm() string {
	if len(e.ProcessName) > TaskCommLen-1 {
		return e.ProcessName[:TaskCommLen-1]
	}
	return e.ProcessName
}

// MonitorSpec is a tagged union over the three monitor variants. Exactly one
// of PID, Network, EBPF is populated, selected by Type.
type MonitorSpec struct {
	Type    MonitorType     `mapstructure:"type"`
	PID     *PIDMonitor     `mapstructure:"pid"`
	Network *NetworkMonitor `mapstructure:"network"`
	EBPF    *EBPFMonitor    `mapstructure:"ebpf"`
}

func (m MonitorSpec) Validate() error {
	switch m.Type {
	case MonitorPID:
		if m.PID == nil {
			return fmt.Errorf("monitor type %q requires a pid block", m.Type)
		}
		if m.PID.PIDFilePath == "" {
			return fmt.Errorf("monitor pid: pid_file_path is required")
		}
		if m.PID.IntervalSecs <= 0 {
			return fmt.Errorf("monitor pid: interval_secs must be positive")
		}
	case MonitorNetwork:
		if m.Network == nil {
			return fmt.Errorf("monitor type %q requires a network block", m.Type)
		}
		if m.Network.URL == "" {
			return fmt.Errorf("monitor network: url is required")
		}
		if m.Network.IntervalSecs <= 0 {
			return fmt.Errorf("monitor network: interval_secs must be positive")
		}
		if m.Network.TimeoutSecs <= 0 {
			return fmt.Errorf("monitor network: timeout_secs must be positive")
		}
	case MonitorEBPF:
		if m.EBPF == nil {
			return fmt.Errorf("monitor type %q requires an ebpf block", m.Type)
		}
		if m.EBPF.ProcessName == "" {
			return fmt.Errorf("monitor ebpf: process_name is required")
		}
	default:
		return fmt.Errorf("unknown monitor type %q", m.Type)
	}
	return nil
}

// Fingerprint returns a structural hash of the monitor variant and its
// fields, used by the Monitor Manager to decide whether a reload mutates a
// given monitor.
func (m MonitorSpec) Fingerprint() uint64 {
	h := xxhash.New()
	switch m.Type {
	case MonitorPID:
		fmt.Fprintf(h, "pid|%s|%d", m.PID.PIDFilePath, m.PID.IntervalSecs)
	case MonitorNetwork:
		fmt.Fprintf(h, "network|%s|%d|%d", m.Network.URL, m.Network.IntervalSecs, m.Network.TimeoutSecs)
	case MonitorEBPF:
		fmt.Fprintf(h, "ebpf|%s", m.EBPF.ProcessName)
	default:
		fmt.Fprintf(h, "unknown|%s", m.Type)
	}
	return h.Sum64()
}

// RecoverySpec parameterizes the circuit breaker.
type RecoverySpec struct {
	Retries         int `mapstructure:"retries"`
	RetryWindowSecs int `mapstructure:"retry_window_secs"`
	CooldownSecs    int `mapstructure:"cooldown_secs"`
}

func (r RecoverySpec) Validate() error {
	if r.Retries <= 0 {
		return fmt.Errorf("recovery: retries must be positive")
	}
	if r.RetryWindowSecs <= 0 {
		return fmt.Errorf("recovery: retry_window_secs must be positive")
	}
	if r.CooldownSecs <= 0 {
		return fmt.Errorf("recovery: cooldown_secs must be positive")
	}
	return nil
}

// ProcessSpec is the declared unit of supervision.
type ProcessSpec struct {
	Name        string       `mapstructure:"name"`
	Enabled     bool         `mapstructure:"enabled"`
	Command     string       `mapstructure:"command"`
	Args        []string     `mapstructure:"args"`
	RunAsRoot   bool         `mapstructure:"run_as_root"`
	RunAsUser   string       `mapstructure:"run_as_user"`
	Env         []string     `mapstructure:"env"`
	Monitor     MonitorSpec  `mapstructure:"monitor"`
	Recovery    RecoverySpec `mapstructure:"recovery"`
}

func (p ProcessSpec) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("process: name is required")
	}
	if p.Command == "" {
		return fmt.Errorf("process %s: command is required", p.Name)
	}
	if !p.RunAsRoot && p.RunAsUser == "" {
		return fmt.Errorf("process %s: must set run_as_root or run_as_user", p.Name)
	}
	if err := p.Monitor.Validate(); err != nil {
		return fmt.Errorf("process %s: %w", p.Name, err)
	}
	if err := p.Recovery.Validate(); err != nil {
		return fmt.Errorf("process %s: %w", p.Name, err)
	}
	return nil
}
