//go:build unix

package shell

import (
	"errors"
	"os/exec"
	"syscall"
)

// killProcessGroup starts c in its own process group and kills the whole group on cancellation,
// so helpers spawned by a toolchain driver do not outlive the build.
func killProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		err := syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return c.Process.Kill()
		}
		return err
	}
}
