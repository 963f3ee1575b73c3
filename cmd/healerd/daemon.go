package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/healerd/healer/internal/config"
)

const defaultPIDFileDirectory = "/var/run/healer"

// daemonize re-executes the current binary detached from the controlling
// terminal, in its own session, with stdio redirected to /dev/null, then
// exits the parent. The child observes HEALER_NO_DAEMON and runs in the
// foreground instead of recursing. The PID file is written to
// <pid_file_directory>/healer.pid, with pid_file_directory read from
// configPath (falling back to the built-in default if the config can't be
// loaded here; the child will surface the real load error itself).
func daemonize(configPath string) error {
	if os.Getppid() == 1 {
		return nil
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable path: %w", err)
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer func() { _ = devNull.Close() }()

	cmd := exec.Command(executable, os.Args[1:]...)
	cmd.Env = append(os.Environ(), "HEALER_NO_DAEMON=1")
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	configureDaemonAttrs(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start detached process: %w", err)
	}

	pidFile := filepath.Join(pidFileDirectory(configPath), "healer.pid")
	if err := writePIDFile(pidFile, cmd.Process.Pid); err != nil {
		fmt.Fprintf(os.Stderr, "healerd: warning: failed to write pid file %s: %v\n", pidFile, err)
	}

	os.Exit(0)
	return nil
}

// pidFileDirectory resolves pid_file_directory from configPath, falling
// back to the built-in default on any load error.
func pidFileDirectory(configPath string) string {
	cfg, err := config.Load(configPath)
	if err != nil {
		return defaultPIDFileDirectory
	}
	return cfg.PIDFileDirectory
}

func writePIDFile(path string, pid int) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = fmt.Fprintf(f, "%d", pid)
	return err
}
