// Package spawn executes the recovery command for a ProcessSpec: working
// directory, log redirection, privilege drop, and session detachment.
// It never waits on the spawned child; reaping is the Signal
// Dispatcher's job (internal/signalctl).
package spawn

import (
	"fmt"
	"os/exec"

	"github.com/healerd/healer/internal/configstore"
	"github.com/healerd/healer/internal/env"
	"github.com/healerd/healer/internal/logger"
	"github.com/healerd/healer/internal/spec"
)

// Spawner executes a recovery command for a ProcessSpec.
type Spawner interface {
	Spawn(s spec.ProcessSpec) error
}

// ProcessSpawner is the default Spawner. It reads working_directory and
// log_directory from the live config store on every spawn, so a SIGHUP that
// changes either takes effect on the next recovery without a restart.
type ProcessSpawner struct {
	Store *configstore.Store
}

// Spawn execs s.Command with s.Args, redirecting stdout/stderr to rotated log
// files and dropping privileges per run_as_root/run_as_user. It returns as
// soon as the child has been successfully exec'd.
func (p *ProcessSpawner) Spawn(s spec.ProcessSpec) error {
	cfg := p.Store.Current()

	cmd := exec.Command(s.Command, s.Args...)
	cmd.Dir = cfg.WorkingDirectory

	e := env.New()
	cmd.Env = e.Merge(s.Env)

	logCfg := logger.Config{Dir: cfg.LogDirectory}
	outW, errW, err := logCfg.Writers(s.Name)
	if err != nil {
		return fmt.Errorf("open log writers for %s: %w", s.Name, err)
	}
	if outW != nil {
		cmd.Stdout = outW
	}
	if errW != nil {
		cmd.Stderr = errW
	}

	if err := configureCredentials(cmd, s); err != nil {
		return fmt.Errorf("resolve privileges for %s: %w", s.Name, err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.Name, err)
	}
	return nil
}
