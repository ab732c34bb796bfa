//go:build !windows

package supervisor

import (
	"os/exec"
	"syscall"
)

// setProcAttrs puts the child in its own process group so a timeout kill
// reaches the whole tree, not just the direct child.
func setProcAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate sends SIGTERM to the child's process group. If the group does
// not exit within WaitDelay, exec.Cmd escalates to SIGKILL.
func terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	// Negative pid targets the process group.
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
}
