package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDecodesPIDMonitorProcess(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
processes:
  - name: web
    command: /usr/bin/web
    run_as_root: true
    monitor:
      type: pid
      pid:
        pid_file_path: /var/run/web.pid
        interval_secs: 2
    recovery:
      retries: 3
      retry_window_secs: 60
      cooldown_secs: 5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Processes) != 1 {
		t.Fatalf("expected 1 process, got %d", len(cfg.Processes))
	}
	p := cfg.Processes[0]
	if p.Name != "web" || p.Monitor.Type != "pid" || p.Monitor.PID.PIDFilePath != "/var/run/web.pid" {
		t.Fatalf("unexpected decode: %+v", p)
	}
}

func TestLoadDecodesNetworkMonitorProcess(t *testing.T) {
	path := writeConfig(t, `
processes:
  - name: api
    command: /usr/bin/api
    run_as_user: api
    monitor:
      type: network
      network:
        url: http://127.0.0.1:8080/health
        interval_secs: 5
        timeout_secs: 2
    recovery:
      retries: 2
      retry_window_secs: 30
      cooldown_secs: 10
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p := cfg.Processes[0]
	if p.Monitor.Type != "network" || p.Monitor.Network.URL != "http://127.0.0.1:8080/health" {
		t.Fatalf("unexpected decode: %+v", p)
	}
}

func TestLoadRejectsUnknownMonitorType(t *testing.T) {
	path := writeConfig(t, `
processes:
  - name: bogus
    command: /usr/bin/bogus
    run_as_root: true
    monitor:
      type: carrier-pigeon
    recovery:
      retries: 1
      retry_window_secs: 1
      cooldown_secs: 1
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for an unknown monitor type")
	}
}

func TestLoadRejectsMissingRunAsUserOrRoot(t *testing.T) {
	path := writeConfig(t, `
processes:
  - name: web
    command: /usr/bin/web
    monitor:
      type: pid
      pid:
        pid_file_path: /var/run/web.pid
        interval_secs: 1
    recovery:
      retries: 1
      retry_window_secs: 1
      cooldown_secs: 1
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error when neither run_as_root nor run_as_user is set")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
processes: []
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log_level info, got %q", cfg.LogLevel)
	}
	if cfg.PIDFileDirectory == "" {
		t.Fatalf("expected a default pid_file_directory")
	}
}
