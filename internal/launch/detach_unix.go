//go:build unix

package launch

import (
	"os/exec"
	"syscall"
)

// detach starts the child in its own process group, so it is not killed
// together with the caller's terminal session.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
