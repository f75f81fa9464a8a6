package agentexec

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrCancelled terminates a stream whose consumer stopped consuming.
var ErrCancelled = errors.New("agent execution cancelled")

// Stream is a lazily-produced sequence of raw output lines from one agent
// execution. Lines are delivered in subprocess emission order. When the
// lines channel closes, Err reports how the stream ended: nil for a clean
// exit, otherwise the terminal failure.
type Stream struct {
	lines   chan string
	stopped chan struct{}
	once    sync.Once
	cancel  func()

	// err is written before lines is closed; the channel close is the
	// happens-before edge that makes it safe to read afterwards.
	err error
}

// Lines returns the channel of raw output lines. The channel closes when
// the execution ends, after which Err is valid.
func (s *Stream) Lines() <-chan string {
	return s.lines
}

// Err reports the terminal error of the stream. Only valid after Lines has
// been closed.
func (s *Stream) Err() error {
	return s.err
}

// Close cancels the stream: the agent process group is terminated and the
// timeout timer cleared. Safe to call multiple times and after the stream
// has already ended.
func (s *Stream) Close() {
	s.once.Do(func() {
		close(s.stopped)
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// ExecuteStream spawns the agent exactly as Execute does but exposes its
// stdout as a line stream instead of a buffered result. Stderr is observed
// for logging only. Resolution and spawn failures are reported
// synchronously; everything after a successful spawn terminates the stream
// via Err.
func (s *Supervisor) ExecuteStream(ctx context.Context, req Request) (*Stream, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("prompt must not be empty")
	}

	path, err := s.resolveBinary()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(path, s.buildArgs(req)...)
	cmd.Dir = req.WorkDir
	setProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("agent binary not found: %w", err)
		}
		return nil, fmt.Errorf("spawning agent: %w", err)
	}

	s.logger.Debug("spawned streaming agent pid=%d workdir=%s", cmd.Process.Pid, req.WorkDir)

	go func() {
		_, _ = io.WriteString(stdin, req.Prompt)
		_ = stdin.Close()
	}()

	// procDone closes once cmd.Wait has reaped the child. Every signalling
	// path checks it first: after the reap the pgid is free for reuse, and a
	// late SIGTERM or the kill-grace SIGKILL would land on an unrelated
	// process group.
	procDone := make(chan struct{})
	killAfterGrace := func() {
		time.AfterFunc(killGracePeriod, func() {
			select {
			case <-procDone:
			default:
				killGroup(cmd.Process)
			}
		})
	}

	var timedOut atomic.Bool
	var timer *time.Timer
	if req.Timeout > 0 {
		timer = time.AfterFunc(req.Timeout, func() {
			select {
			case <-procDone:
				return
			default:
			}
			timedOut.Store(true)
			s.logger.Warn("streaming execution timed out after %s, terminating pid=%d", req.Timeout, cmd.Process.Pid)
			terminateGroup(cmd.Process)
			killAfterGrace()
		})
	}

	stream := &Stream{
		lines:   make(chan string),
		stopped: make(chan struct{}),
	}
	stream.cancel = func() {
		if timer != nil {
			timer.Stop()
		}
		select {
		case <-procDone:
			return
		default:
		}
		terminateGroup(cmd.Process)
		killAfterGrace()
	}

	// Stderr is not part of the stream; surface it in the logs.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				s.logger.Debug("agent stderr: %s", line)
			}
		}
	}()

	go func() {
		defer close(stream.lines)

		scanner := bufio.NewScanner(stdout)
		// Single agent events can be large; give the scanner room.
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

		cancelled := false
	scan:
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			select {
			case stream.lines <- line:
			case <-stream.stopped:
				cancelled = true
				break scan
			case <-ctx.Done():
				cancelled = true
				stream.Close()
				break scan
			}
		}
		scanErr := scanner.Err()

		// A cancellation can also surface as plain EOF when the process
		// group dies between sends; classify it as such either way.
		select {
		case <-stream.stopped:
			cancelled = true
		default:
		}

		if cancelled {
			// The process group has been signalled; drain what is left so
			// Wait can close the pipes cleanly.
			_, _ = io.Copy(io.Discard, stdout)
		}

		wg.Wait()
		waitErr := cmd.Wait()
		close(procDone)
		if timer != nil {
			timer.Stop()
		}

		switch {
		case timedOut.Load():
			stream.err = fmt.Errorf("agent execution timed out after %s", req.Timeout)
		case cancelled:
			stream.err = ErrCancelled
		case waitErr != nil:
			stream.err = streamExitError(waitErr)
		case scanErr != nil:
			stream.err = fmt.Errorf("reading agent output: %w", scanErr)
		}
	}()

	return stream, nil
}

func streamExitError(waitErr error) error {
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return fmt.Errorf("agent exited with code %d", exitErr.ExitCode())
	}
	return fmt.Errorf("waiting for agent: %w", waitErr)
}
