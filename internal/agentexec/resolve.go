package agentexec

import (
	"fmt"
	"os"
	"os/exec"
)

// resolveBinary returns the executable path for the agent CLI. The known
// install path wins when it exists; otherwise the bare command name is
// resolved on PATH. The lookup runs once per Supervisor.
func (s *Supervisor) resolveBinary() (string, error) {
	s.resolveOnce.Do(func() {
		if s.cfg.InstallPath != "" {
			if info, err := os.Stat(s.cfg.InstallPath); err == nil && !info.IsDir() {
				s.resolvedTo = s.cfg.InstallPath
				return
			}
		}

		path, err := exec.LookPath(s.cfg.Binary)
		if err != nil {
			s.resolveErr = fmt.Errorf("agent binary %q not found: %w", s.cfg.Binary, err)
			return
		}
		s.resolvedTo = path
	})
	return s.resolvedTo, s.resolveErr
}

// Ready reports whether the agent binary is resolvable. Used by the
// readiness endpoint.
func (s *Supervisor) Ready() error {
	_, err := s.resolveBinary()
	return err
}
