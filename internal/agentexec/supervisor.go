package agentexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// killGracePeriod is how long a terminated agent gets to exit before the
// whole process group is force-killed.
const killGracePeriod = 5 * time.Second

// lockedBuffer accumulates agent output from both pipes in arrival order.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Execute runs the agent to completion and resolves a terminal Result.
// It never returns an out-of-band error: spawn failures, timeouts, and
// non-zero exits all fold into a Result with Success=false.
func (s *Supervisor) Execute(ctx context.Context, req Request) Result {
	if strings.TrimSpace(req.Prompt) == "" {
		return Result{Error: "prompt must not be empty"}
	}

	path, err := s.resolveBinary()
	if err != nil {
		return Result{Error: err.Error()}
	}

	cmd := exec.Command(path, s.buildArgs(req)...)
	cmd.Dir = req.WorkDir
	setProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return Result{Error: fmt.Sprintf("creating stdin pipe: %v", err)}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{Error: fmt.Sprintf("creating stdout pipe: %v", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{Error: fmt.Sprintf("creating stderr pipe: %v", err)}
	}

	if err := cmd.Start(); err != nil {
		// The timeout timer is only armed after a successful spawn, so a
		// spawn failure cannot leave a dangling timer behind.
		if errors.Is(err, exec.ErrNotFound) {
			return Result{Error: fmt.Sprintf("agent binary not found: %v", err)}
		}
		return Result{Error: fmt.Sprintf("spawning agent: %v", err)}
	}

	s.logger.Debug("spawned agent pid=%d workdir=%s", cmd.Process.Pid, req.WorkDir)

	// The agent reads the entire prompt before producing output; write it
	// all and close stdin so the agent sees EOF.
	go func() {
		_, _ = io.WriteString(stdin, req.Prompt)
		_ = stdin.Close()
	}()

	var out lockedBuffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&out, stdout)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&out, stderr)
		return err
	})

	done := make(chan error, 1)
	go func() {
		_ = g.Wait()
		done <- cmd.Wait()
	}()

	var timeoutC <-chan time.Time
	if req.Timeout > 0 {
		timer := time.NewTimer(req.Timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case waitErr := <-done:
		return resolveExit(waitErr, out.String())

	case <-timeoutC:
		s.logger.Warn("agent execution timed out after %s, terminating pid=%d", req.Timeout, cmd.Process.Pid)
		s.reap(cmd, done)
		return Result{
			Output: out.String(),
			Error:  fmt.Sprintf("agent execution timed out after %s", req.Timeout),
		}

	case <-ctx.Done():
		s.logger.Debug("execution cancelled, terminating pid=%d", cmd.Process.Pid)
		s.reap(cmd, done)
		return Result{
			Output: out.String(),
			Error:  "agent execution cancelled",
		}
	}
}

// reap terminates the agent's process group and leaves a goroutine behind to
// force-kill and collect the exit status, so no zombie is left regardless of
// how the agent reacts to the termination signal.
func (s *Supervisor) reap(cmd *exec.Cmd, done <-chan error) {
	terminateGroup(cmd.Process)
	go func() {
		select {
		case <-done:
		case <-time.After(killGracePeriod):
			killGroup(cmd.Process)
			<-done
		}
	}()
}

func resolveExit(waitErr error, output string) Result {
	if waitErr == nil {
		return Result{Success: true, Output: output}
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return Result{
			Output: output,
			Error:  fmt.Sprintf("agent exited with code %d", exitErr.ExitCode()),
		}
	}
	return Result{
		Output: output,
		Error:  fmt.Sprintf("waiting for agent: %v", waitErr),
	}
}
