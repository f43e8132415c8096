// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"fmt"
	"time"

	"github.com/KillingSpark/unitd/internal/unit"
)

// runHelpers launches each command in cmds in order, waiting for one
// to finish before starting the next (spec.md §4.3's startpre/startpost
// sequencing). A command whose Argv[0] does not carry the "-" ignore
// prefix aborts the whole sequence on non-zero exit or timeout.
func (s *Supervisor) runHelpers(id unit.Id, cmds []unit.Command, ec unit.ExecConfig, workDir string, timeout time.Duration) error {
	for i, c := range cmds {
		if err := s.runHelper(id, i, c, ec, workDir, timeout); err != nil {
			return err
		}
	}
	return nil
}

func (s *Supervisor) runHelper(id unit.Id, index int, c unit.Command, ec unit.ExecConfig, workDir string, timeout time.Duration) error {
	if len(c.Argv) == 0 {
		return nil
	}
	cmd, _, _, err := s.launch(launchSpec{
		Argv:       c.Argv,
		WorkDir:    workDir,
		ExecConfig: ec,
	})
	if err != nil {
		return fmt.Errorf("supervisor: %s: helper %d (%v): %w", id, index, c.Argv, err)
	}

	pid := cmd.Process.Pid
	s.pids.Insert(pid, pidtableHelperEntry(id, c.Argv))

	term, err := s.waitHelper(cmd, timeout)
	s.pids.Remove(pid)
	if err != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("supervisor: %s: helper %d (%v): %w", id, index, c.Argv, err)
	}
	if !c.IgnoreFailure && (term.Signaled || term.Code != 0) {
		return unit.StartErr(unit.ReasonServiceStartError, unit.DetailBadExitCode,
			fmt.Errorf("helper %d (%v) exited %+v", index, c.Argv, term))
	}
	return nil
}
