//go:build !linux

package agentexec

import (
	"os"
	"os/exec"
	"syscall"
)

// setProcAttr places the agent in its own process group. Pdeathsig is not
// available outside Linux; the process group still lets the supervisor
// signal the agent and its children together.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

func terminateGroup(p *os.Process) {
	if p == nil {
		return
	}
	_ = syscall.Kill(-p.Pid, syscall.SIGTERM)
}

func killGroup(p *os.Process) {
	if p == nil {
		return
	}
	_ = syscall.Kill(-p.Pid, syscall.SIGKILL)
}
