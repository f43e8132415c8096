// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"errors"
	"log"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/KillingSpark/unitd/internal/pidtable"
	"github.com/KillingSpark/unitd/internal/platform"
	"github.com/KillingSpark/unitd/internal/unit"
)

// errStopTimeout is returned by waitExit when the deadline elapses
// before the pid table records the process as exited.
var errStopTimeout = errors.New("supervisor: timed out waiting for process exit")

// Stop runs the full stop sequence for a service unit (spec.md §4.3):
// SIGTERM to the process group, configured stop* helpers, wait up to
// the stop timeout, SIGKILL on timeout, then stoppost* helpers. With a
// cgroup configured, freeze -> kill -> thaw is used instead of a bare
// process-group signal so no forked descendant can escape.
func (s *Supervisor) Stop(id unit.Id, svc *unit.ServiceSpecific) error {
	cfg := svc.Config
	state := svc.State

	state.RLock()
	pid := state.PID
	pgid := state.ProcessGroup
	state.RUnlock()

	stopTimeout := cfg.Timeouts.StopTimeout(defaultStopTimeout)

	var stopErr error

	if pid != 0 {
		if cfg.CgroupPath != "" {
			if err := s.stopViaCgroup(cfg.CgroupPath); err != nil {
				log.Printf("supervisor: %s: cgroup stop fell back to process-group signal: %v", id, err)
				_ = platform.KillProcessGroup(pgid, unix.SIGTERM)
			}
		} else {
			_ = platform.KillProcessGroup(pgid, unix.SIGTERM)
		}
	}

	if err := s.runHelpers(id, cfg.Stop, cfg.ExecConfig, "", stopTimeout); err != nil {
		log.Printf("supervisor: %s: stop helper error: %v", id, err)
		if stopErr == nil {
			stopErr = unit.StopErr(unit.ReasonServiceStopError, "stop", err)
		}
	}

	if pid != 0 {
		if err := s.waitExit(pid, stopTimeout); err != nil {
			_ = platform.KillProcessGroup(pgid, unix.SIGKILL)
			if err := s.waitExit(pid, defaultStopTimeout); err != nil {
				log.Printf("supervisor: %s: process did not exit after SIGKILL: %v", id, err)
				if stopErr == nil {
					stopErr = unit.StopErr(unit.ReasonServiceStopError, unit.DetailTimeout, err)
				}
			}
		}
	}

	if err := s.runHelpers(id, cfg.StopPost, cfg.ExecConfig, "", stopTimeout); err != nil {
		log.Printf("supervisor: %s: stoppost helper error: %v", id, err)
		if stopErr == nil {
			stopErr = unit.StopErr(unit.ReasonServiceStopError, "stoppost", err)
		}
	}

	if cfg.Type == unit.Notify || cfg.Type == unit.Dbus {
		if stop, ok := s.notifyLoops[id]; ok {
			close(stop)
			delete(s.notifyLoops, id)
		}
		s.closeNotifySocket(id)
	}
	state.Reset()
	return stopErr
}

// stopViaCgroup freezes the service's cgroup, sends SIGKILL to every
// process in it (frozen processes cannot dodge the signal by forking
// away first), then thaws so the now-dead tasks' cgroup can be
// removed by the caller.
func (s *Supervisor) stopViaCgroup(cgroupPath string) error {
	drv, err := platform.NewCgroupDriver(filepath.Dir(cgroupPath), filepath.Base(cgroupPath))
	if err != nil {
		return err
	}
	if err := drv.Freeze(); err != nil {
		return err
	}
	if err := platform.KillAll(drv, unix.SIGKILL); err != nil {
		_ = drv.Thaw()
		return err
	}
	return drv.Thaw()
}

// waitExit polls the PidTable until pid's main process is recorded as
// exited, or timeout elapses.
func (s *Supervisor) waitExit(pid int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	backoff := oneShotPollStart
	for {
		if e, ok := s.pids.Get(pid); ok && e.Kind == pidtable.KindServiceExited {
			return nil
		}
		if time.Now().After(deadline) {
			return errStopTimeout
		}
		time.Sleep(backoff)
		backoff *= 2
		if backoff > oneShotPollCap {
			backoff = oneShotPollCap
		}
	}
}
