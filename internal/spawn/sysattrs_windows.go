//go:build windows

package spawn

import (
	"fmt"
	"os/exec"

	"github.com/healerd/healer/internal/spec"
)

// configureCredentials has no Windows equivalent for uid/gid drop or
// session detachment in this implementation; Healer's deployment target is
// Linux (the eBPF monitor requires it), so Windows builds reject non-root
// recovery specs rather than silently running privileged.
func configureCredentials(cmd *exec.Cmd, s spec.ProcessSpec) error {
	if !s.RunAsRoot {
		return fmt.Errorf("run_as_user privilege drop is not supported on windows")
	}
	return nil
}
