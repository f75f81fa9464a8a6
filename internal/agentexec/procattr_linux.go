//go:build linux

package agentexec

import (
	"os"
	"os/exec"
	"syscall"
)

// setProcAttr places the agent in its own process group and arranges for it
// to receive SIGTERM if codegate itself dies, so no agent process outlives
// its request.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}

// terminateGroup signals the agent's entire process group. The negative PID
// delivers the signal to every process in the group, covering children the
// agent may have spawned.
func terminateGroup(p *os.Process) {
	if p == nil {
		return
	}
	_ = syscall.Kill(-p.Pid, syscall.SIGTERM)
}

// killGroup force-kills the agent's process group.
func killGroup(p *os.Process) {
	if p == nil {
		return
	}
	_ = syscall.Kill(-p.Pid, syscall.SIGKILL)
}
