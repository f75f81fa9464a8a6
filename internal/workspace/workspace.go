// Package workspace provisions per-request working directories for agent
// executions and cleans them up afterwards.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codegate/internal/logging"
)

// Manager provisions isolated working directories under one root.
type Manager struct {
	root   string
	logger *logging.Logger
}

// NewManager creates a Manager rooted at root. The root is created on first
// Provision, not here, so construction cannot fail.
func NewManager(root string) *Manager {
	return &Manager{
		root:   root,
		logger: logging.NewComponentLogger("workspace"),
	}
}

// Root returns the workspace root directory.
func (m *Manager) Root() string {
	return m.root
}

// Provision creates an empty working directory for one request and returns
// its path with a cleanup function. Cleanup failures are logged, never
// propagated: a leftover directory must not fail the request that produced
// it, and Sweep collects strays later.
func (m *Manager) Provision(requestID string) (string, func(), error) {
	name := sanitize(requestID)
	if name == "" {
		return "", nil, fmt.Errorf("invalid request id %q", requestID)
	}

	dir := filepath.Join(m.root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("provisioning workspace: %w", err)
	}

	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			m.logger.Warn("failed to remove workspace %s: %v", dir, err)
		}
	}
	return dir, cleanup, nil
}

// Sweep removes workspaces older than maxAge. Intended for startup and
// periodic housekeeping; abandoned directories accumulate only when a
// cleanup was lost to a crash.
func (m *Manager) Sweep(maxAge time.Duration) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("failed to read workspace root %s: %v", m.root, err)
		}
		return
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		dir := filepath.Join(m.root, entry.Name())
		if err := os.RemoveAll(dir); err != nil {
			m.logger.Warn("failed to sweep workspace %s: %v", dir, err)
			continue
		}
		m.logger.Info("swept stale workspace %s", dir)
	}
}

// sanitize reduces a request id to a safe directory name.
func sanitize(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}
