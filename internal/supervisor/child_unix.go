//go:build !windows

package supervisor

import (
	"os/exec"
	"syscall"
)

// configureDetached starts the child in a new session so the
// orchestrator's own lifecycle (terminal hangups included) does not take
// the child down with it. The new session is also a new process group,
// which lets terminate signal the whole tree at once.
func configureDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

func signalTerm(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGTERM)
}

func signalKill(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}
