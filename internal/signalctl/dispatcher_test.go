package signalctl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/healerd/healer/internal/config"
	"github.com/healerd/healer/internal/configstore"
	"github.com/healerd/healer/internal/healer"
	"github.com/healerd/healer/internal/monitor"
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

const validConfig = `
processes:
  - name: alpha
    command: /bin/true
    run_as_root: true
    monitor:
      type: pid
      pid:
        pid_file_path: /tmp/alpha.pid
        interval_secs: 1
    recovery:
      retries: 3
      retry_window_secs: 60
      cooldown_secs: 5
`

const invalidConfig = `
processes:
  - name: bogus
    command: /bin/true
    monitor:
      type: not-a-real-type
`

func TestReloadSwapsConfigOnSuccess(t *testing.T) {
	path := writeConfig(t, validConfig)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("initial load: %v", err)
	}
	store := configstore.New(cfg)
	mgr := monitor.NewManager(nil, "")
	defer mgr.Shutdown()
	h := healer.New(nil)
	h.SetSpecs(cfg.Processes)

	d := New(store, mgr, h, path)
	d.reload()

	if got := store.Current(); len(got.Processes) != 1 || got.Processes[0].Name != "alpha" {
		t.Fatalf("expected reload to publish the loaded config, got %+v", got)
	}
}

func TestReloadRetainsPreviousConfigOnFailure(t *testing.T) {
	path := writeConfig(t, validConfig)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("initial load: %v", err)
	}
	store := configstore.New(cfg)
	mgr := monitor.NewManager(nil, "")
	defer mgr.Shutdown()
	h := healer.New(nil)
	h.SetSpecs(cfg.Processes)

	d := New(store, mgr, h, path)

	if err := os.WriteFile(path, []byte(invalidConfig), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	d.reload()

	if got := store.Current(); len(got.Processes) != 1 || got.Processes[0].Name != "alpha" {
		t.Fatalf("expected previous config to be retained after a failed reload, got %+v", got)
	}
}
