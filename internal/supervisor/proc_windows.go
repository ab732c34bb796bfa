//go:build windows

package supervisor

import "os/exec"

func setProcAttrs(cmd *exec.Cmd) {}

// terminate force-kills the child. Windows has no SIGTERM, so there is no
// graceful phase; WaitDelay still bounds how long Wait blocks on pipes.
func terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
