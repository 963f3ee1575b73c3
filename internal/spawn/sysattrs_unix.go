//go:build !windows

package spawn

import (
	"fmt"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"

	"github.com/healerd/healer/internal/spec"
)

// configureCredentials detaches the child into a new session and, when
// run_as_root is false, resolves run_as_user to a uid/gid pair and
// drops privileges before exec. A resolution failure is returned as an
// error so the caller treats it as a recovery failure.
func configureCredentials(cmd *exec.Cmd, s spec.ProcessSpec) error {
	attrs := &syscall.SysProcAttr{Setsid: true}
	if !s.RunAsRoot {
		uid, gid, err := resolveUser(s.RunAsUser)
		if err != nil {
			return err
		}
		attrs.Credential = &syscall.Credential{Uid: uid, Gid: gid}
	}
	cmd.SysProcAttr = attrs
	return nil
}

func resolveUser(name string) (uid, gid uint32, err error) {
	u, err := user.Lookup(name)
	if err != nil {
		return 0, 0, fmt.Errorf("lookup user %q: %w", name, err)
	}
	uid64, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("parse uid for %q: %w", name, err)
	}
	gid64, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("parse gid for %q: %w", name, err)
	}
	return uint32(uid64), uint32(gid64), nil
}
