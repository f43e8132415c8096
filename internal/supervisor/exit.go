// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"errors"
	"fmt"
	"log"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"

	"github.com/KillingSpark/unitd/internal/pidtable"
	"github.com/KillingSpark/unitd/internal/unit"
)

func pidtableHelperEntry(id unit.Id, argv []string) pidtable.Entry {
	name := ""
	if len(argv) > 0 {
		name = argv[0]
	}
	return pidtable.NewHelperEntry(id, name)
}

// terminationFromWaitErr turns the error cmd.Wait() returns into a
// pidtable.Termination, the same translation trellis's
// Process.waitForExit does for its own status bookkeeping.
func terminationFromWaitErr(err error) pidtable.Termination {
	if err == nil {
		return pidtable.Termination{}
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return pidtable.Termination{Code: -1}
	}
	status, ok := exitErr.Sys().(unix.WaitStatus)
	if !ok {
		return pidtable.Termination{Code: exitErr.ExitCode()}
	}
	if status.Signaled() {
		return pidtable.Termination{Signaled: true, Signal: int(status.Signal())}
	}
	return pidtable.Termination{Code: status.ExitStatus()}
}

// waitHelper waits for a helper process to exit, killing it if timeout
// elapses first.
func (s *Supervisor) waitHelper(cmd *exec.Cmd, timeout time.Duration) (pidtable.Termination, error) {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var timer *time.Timer
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		timeoutCh = timer.C
		defer timer.Stop()
	}

	select {
	case err := <-done:
		return terminationFromWaitErr(err), nil
	case <-timeoutCh:
		_ = cmd.Process.Kill()
		<-done
		return pidtable.Termination{}, fmt.Errorf("%s", unit.DetailTimeout)
	}
}

// reap blocks on cmd.Wait() for the service's main process, records the
// termination in the PidTable, and hands the decision off to the
// exit handler. One goroutine per forked process, grounded on
// trellis's Process.waitForExit rather than a shared signalfd reaper:
// os/exec already owns SIGCHLD for processes it started, so a second
// waitpid(-1) loop outside it would race the runtime's own reaping.
func (s *Supervisor) reap(id unit.Id, cmd *exec.Cmd) {
	pid := cmd.Process.Pid
	err := cmd.Wait()
	term := terminationFromWaitErr(err)

	owner, ok := s.pids.TakeServiceExit(pid, term)
	if !ok {
		log.Printf("supervisor: reap %s (pid %d): no matching service entry in pid table", id, pid)
		return
	}
	if owner != id {
		log.Printf("supervisor: reap %s (pid %d): pid table owner mismatch (%s)", id, pid, owner)
	}

	if s.exitHandler != nil {
		s.exitHandler(id, term)
	}
}
