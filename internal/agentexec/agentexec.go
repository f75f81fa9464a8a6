// Package agentexec supervises the external coding-agent CLI.
// Each execution spawns one agent process, feeds it the full prompt on
// stdin, and either buffers its output into a single Result or exposes it
// as a cancellable stream of raw lines. All failure modes — missing binary,
// non-zero exit, timeout — resolve to a Result or a stream error; nothing
// escapes the supervisor boundary as a panic or unhandled error.
package agentexec

import (
	"sync"
	"time"

	"codegate/internal/logging"
)

// Config holds the environment-sourced settings shared by all executions.
// It is immutable after construction.
type Config struct {
	// Binary is the bare agent command name, looked up on PATH when the
	// install path is absent.
	Binary string
	// InstallPath is the preferred absolute path to the agent binary.
	InstallPath string
	// Model is the single model identifier pinned on every invocation.
	Model string
	// APIKey, when non-empty, is forwarded to the agent as a credential
	// argument.
	APIKey string
}

// Request describes one agent execution. Immutable once constructed and
// owned exclusively by that execution.
type Request struct {
	// Prompt is the full prompt text, written to the agent's stdin.
	Prompt string
	// WorkDir is the workspace the agent operates in.
	WorkDir string
	// Timeout bounds the execution; zero means unbounded.
	Timeout time.Duration
	// EnableIntegrations lets the agent use its own built-in integrations.
	// Disabled by default.
	EnableIntegrations bool
}

// Result is the terminal outcome of a buffered execution. It is produced
// exactly once and never mutated afterwards.
type Result struct {
	// Success reports whether the agent exited with code 0.
	Success bool
	// Output is the interleaved stdout+stderr text accumulated so far at
	// the moment the execution resolved.
	Output string
	// Error describes the failure when Success is false.
	Error string
}

// Supervisor runs agent executions.
type Supervisor struct {
	cfg    Config
	logger *logging.Logger

	// resolved caches the executable lookup; the path of an installed CLI
	// does not change within a process lifetime.
	resolveOnce sync.Once
	resolvedTo  string
	resolveErr  error
}

// New creates a Supervisor with the given configuration.
func New(cfg Config) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		logger: logging.NewComponentLogger("agentexec"),
	}
}

// buildArgs constructs the agent argument vector: machine-readable
// line-delimited JSON output, no interactive prompts or workspace indexing,
// the pinned model, the workspace path, and the credential when configured.
func (s *Supervisor) buildArgs(req Request) []string {
	args := []string{
		"--print",
		"--output-format", "stream-json",
		"--no-indexing",
		"--force",
		"--model", s.cfg.Model,
		"--workdir", req.WorkDir,
	}
	if !req.EnableIntegrations {
		args = append(args, "--no-integrations")
	}
	if s.cfg.APIKey != "" {
		args = append(args, "--api-key", s.cfg.APIKey)
	}
	return args
}
