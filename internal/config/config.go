// Package config loads and validates the daemon's YAML configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/healerd/healer/internal/spec"
)

// Config is the top-level daemon configuration.
type Config struct {
	LogLevel         string          `mapstructure:"log_level"`
	LogDirectory     string          `mapstructure:"log_directory"`
	PIDFileDirectory string          `mapstructure:"pid_file_directory"`
	WorkingDirectory string          `mapstructure:"working_directory"`
	EBPFObjectPath   string          `mapstructure:"ebpf_object_path"`
	ProcessConfigs   []processConfig `mapstructure:"processes"`

	Processes []spec.ProcessSpec
}

// processConfig mirrors the YAML shape before the monitor discriminated
// union is decoded into a concrete spec.MonitorSpec variant.
type processConfig struct {
	Name      string         `mapstructure:"name"`
	Command   string         `mapstructure:"command"`
	Args      []string       `mapstructure:"args"`
	Env       []string       `mapstructure:"env"`
	Enabled   *bool          `mapstructure:"enabled"`
	RunAsRoot bool           `mapstructure:"run_as_root"`
	RunAsUser string         `mapstructure:"run_as_user"`
	Monitor   map[string]any `mapstructure:"monitor"`
	Recovery  recoveryConfig `mapstructure:"recovery"`
}

type recoveryConfig struct {
	Retries         int `mapstructure:"retries"`
	RetryWindowSecs int `mapstructure:"retry_window_secs"`
	CooldownSecs    int `mapstructure:"cooldown_secs"`
}

// Load reads, parses, and validates the configuration at path. Any error
// here is a configuration error: fatal at
// startup, logged-and-retained at SIGHUP.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	specs := make([]spec.ProcessSpec, 0, len(cfg.ProcessConfigs))
	for _, pc := range cfg.ProcessConfigs {
		ps, err := decodeProcess(pc)
		if err != nil {
			return nil, err
		}
		if err := ps.Validate(); err != nil {
			return nil, fmt.Errorf("process %q: %w", ps.Name, err)
		}
		specs = append(specs, ps)
	}
	cfg.Processes = specs

	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.PIDFileDirectory == "" {
		cfg.PIDFileDirectory = "/var/run/healer"
	}
}

// decodeProcess turns one YAML process entry into a spec.ProcessSpec,
// resolving the monitor.type discriminated union. An unknown or malformed
// variant rejects the whole load.
func decodeProcess(pc processConfig) (spec.ProcessSpec, error) {
	enabled := true
	if pc.Enabled != nil {
		enabled = *pc.Enabled
	}

	ps := spec.ProcessSpec{
		Name:      pc.Name,
		Command:   pc.Command,
		Args:      pc.Args,
		Env:       pc.Env,
		Enabled:   enabled,
		RunAsRoot: pc.RunAsRoot,
		RunAsUser: pc.RunAsUser,
		Recovery: spec.RecoverySpec{
			Retries:         pc.Recovery.Retries,
			RetryWindowSecs: pc.Recovery.RetryWindowSecs,
			CooldownSecs:    pc.Recovery.CooldownSecs,
		},
	}

	mon, err := decodeMonitor(pc.Monitor)
	if err != nil {
		return ps, fmt.Errorf("process %q: %w", pc.Name, err)
	}
	ps.Monitor = mon
	return ps, nil
}

func decodeMonitor(raw map[string]any) (spec.MonitorSpec, error) {
	typ, _ := raw["type"].(string)
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "pid":
		var m spec.PIDMonitor
		if err := decodeTo(raw["pid"], &m); err != nil {
			return spec.MonitorSpec{}, fmt.Errorf("decode pid monitor: %w", err)
		}
		return spec.MonitorSpec{Type: spec.MonitorPID, PID: &m}, nil
	case "network":
		var m spec.NetworkMonitor
		if err := decodeTo(raw["network"], &m); err != nil {
			return spec.MonitorSpec{}, fmt.Errorf("decode network monitor: %w", err)
		}
		return spec.MonitorSpec{Type: spec.MonitorNetwork, Network: &m}, nil
	case "ebpf":
		var m spec.EBPFMonitor
		if err := decodeTo(raw["ebpf"], &m); err != nil {
			return spec.MonitorSpec{}, fmt.Errorf("decode ebpf monitor: %w", err)
		}
		return spec.MonitorSpec{Type: spec.MonitorEBPF, EBPF: &m}, nil
	default:
		return spec.MonitorSpec{}, fmt.Errorf("unknown monitor type %q (allowed: pid, network, ebpf)", typ)
	}
}

func decodeTo(m any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(m)
}
