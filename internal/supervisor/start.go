// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/KillingSpark/unitd/internal/notify"
	"github.com/KillingSpark/unitd/internal/pidtable"
	"github.com/KillingSpark/unitd/internal/unit"
)

// Start runs the full start sequence for a service unit: startpre
// helpers, the main exec, the readiness wait for its configured
// ServiceType, then startpost helpers (spec.md §4.3). It returns once
// the service is fully up, or a *unit.OperationError describing why it
// isn't.
func (s *Supervisor) Start(id unit.Id, svc *unit.ServiceSpecific) error {
	cfg := svc.Config
	state := svc.State

	startTimeout := cfg.Timeouts.StartTimeout(defaultStartTimeout)
	if err := s.runHelpers(id, cfg.StartPre, cfg.ExecConfig, "", startTimeout); err != nil {
		return unit.StartErr(unit.ReasonServiceStartError, "startpre", err)
	}

	fds, err := s.collectSocketFDs(cfg.Sockets)
	if err != nil {
		return unit.StartErr(unit.ReasonServiceStartError, unit.DetailBadExecPath, err)
	}

	var notifyPath string
	if cfg.Type == unit.Notify || cfg.Type == unit.Dbus {
		l, err := s.ensureNotifySocket(id)
		if err != nil {
			return unit.StartErr(unit.ReasonServiceStartError, "notify-socket", err)
		}
		notifyPath = l.Path()
	}

	cmd, stdoutRead, stderrRead, err := s.launch(launchSpec{
		Argv:             cfg.Exec.Argv,
		ExecConfig:       cfg.ExecConfig,
		NotifySocketPath: notifyPath,
		FDs:              fds,
		CgroupPath:       cfg.CgroupPath,
		CapturePipes:     true,
	})
	if err != nil {
		return unit.StartErr(unit.ReasonServiceStartError, unit.DetailBadExecPath, err)
	}
	pid := cmd.Process.Pid

	// The exec helper calls Setpgid(0, 0) as its first action, so its
	// process group id equals its own pid by construction; no need to
	// race a Getpgid call against that happening.
	pgid := pid
	state.Lock()
	state.PID = pid
	state.ProcessGroup = pgid
	state.NotificationSocket = notifyPath
	state.UpSince = time.Now()
	if stdoutRead != nil {
		state.StdoutPipeFD = int(stdoutRead.Fd())
	}
	if stderrRead != nil {
		state.StderrPipeFD = int(stderrRead.Fd())
	}
	state.Unlock()

	s.pids.Insert(pid, pidtable.NewServiceEntry(id, cfg.Type))
	go s.reap(id, cmd)
	if stdoutRead != nil {
		go s.fanInOutput(id, "stdout", stdoutRead)
	}
	if stderrRead != nil {
		go s.fanInOutput(id, "stderr", stderrRead)
	}

	if err := s.waitReady(id, pid, cfg, state); err != nil {
		return err
	}

	if cfg.Type == unit.Notify || cfg.Type == unit.Dbus {
		if l, ok := s.notifySockets[id]; ok {
			stop := make(chan struct{})
			s.notifyLoops[id] = stop
			go s.serviceNotifyLoop(id, l, state, stop)
		}
	}

	if err := s.runHelpers(id, cfg.StartPost, cfg.ExecConfig, "", startTimeout); err != nil {
		return unit.StartErr(unit.ReasonServiceStartError, "startpost", err)
	}
	return nil
}

// waitReady blocks until the service's readiness protocol reports
// success, failure, or timeout (spec.md §4.3).
func (s *Supervisor) waitReady(id unit.Id, pid int, cfg unit.ServiceConfig, state *unit.ServiceState) error {
	timeout := cfg.Timeouts.StartTimeout(defaultStartTimeout)
	switch cfg.Type {
	case unit.Simple:
		return nil
	case unit.Notify, unit.Dbus:
		// Dbus readiness (spec.md §4.3) polls the system bus for
		// dbus_name; no D-Bus client exists anywhere in this stack, so
		// Dbus services are treated as Notify services and must signal
		// READY=1 themselves. Recorded as an open-question decision.
		return s.waitNotifyReady(id, pid, state, timeout)
	case unit.OneShot:
		return s.waitOneShotExit(id, pid, timeout, cfg.Exec.IgnoreFailure)
	default:
		return fmt.Errorf("supervisor: %s: unknown service type %v", id, cfg.Type)
	}
}

// waitNotifyReady polls the service's notification socket until it
// sees READY=1, the process exits first (ExitBeforeNotify), or the
// start timeout elapses.
func (s *Supervisor) waitNotifyReady(id unit.Id, pid int, state *unit.ServiceState, timeout time.Duration) error {
	l, ok := s.notifySockets[id]
	if !ok {
		return unit.StartErr(unit.ReasonServiceStartError, unit.DetailBadExecPath, fmt.Errorf("no notify socket for %s", id))
	}

	deadline := time.Now().Add(timeout)
	pfd := []unix.PollFd{{Fd: int32(l.Fd()), Events: unix.POLLIN}}

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return unit.StartErr(unit.ReasonServiceStartError, unit.DetailTimeout, nil)
		}
		waitMs := int(remaining / time.Millisecond)
		if waitMs > 200 {
			waitMs = 200
		}
		n, err := unix.Poll(pfd, waitMs)
		if err != nil && err != unix.EINTR {
			return unit.StartErr(unit.ReasonServiceStartError, unit.DetailWaitError, err)
		}
		if n > 0 {
			msg, err := l.Recv()
			if err == nil {
				s.handleNotifyMessage(id, msg, state)
				if msg.Ready {
					state.Lock()
					state.SignaledReady = true
					state.Unlock()
					return nil
				}
			}
		}

		if e, ok := s.pids.Get(pid); !ok || e.Kind == pidtable.KindServiceExited {
			return unit.StartErr(unit.ReasonServiceStartError, unit.DetailExitBeforeNotify, nil)
		}
	}
}

// handleNotifyMessage applies one parsed notification datagram's
// side effects: STATUS= text is appended to the service's status log,
// and an FDSTORE=1 deposit (spec.md §4.3/§4.5) harvests its ancillary
// fds into the FDStore keyed by FDNAME=, ready for a later restart to
// reclaim via fdstore.Store.RemoveServiceStored.
func (s *Supervisor) handleNotifyMessage(id unit.Id, msg notify.Message, state *unit.ServiceState) {
	if msg.HasStatus {
		state.Lock()
		state.StatusMsgs = append(state.StatusMsgs, msg.Status)
		state.Unlock()
	}
	if msg.FDStore && msg.FDName != "" {
		s.fds.InsertServiceStored(id.String(), msg.FDName, msg.Fds)
	}
}

// serviceNotifyLoop is the notification-handler thread that keeps
// servicing id's notification socket after READY=1 has already been
// observed (spec.md §5): a Notify/Dbus service may still send STATUS=
// updates or FDSTORE=1 deposits at any point while it runs. It exits
// once stop is closed (Stop() does this right before tearing down the
// notify socket) or the socket itself errors out from under it.
func (s *Supervisor) serviceNotifyLoop(id unit.Id, l *notify.Listener, state *unit.ServiceState, stop <-chan struct{}) {
	pfd := []unix.PollFd{{Fd: int32(l.Fd()), Events: unix.POLLIN}}
	for {
		select {
		case <-stop:
			return
		default:
		}
		n, err := unix.Poll(pfd, 1000)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if n == 0 {
			continue
		}
		msg, err := l.Recv()
		if err != nil {
			continue
		}
		s.handleNotifyMessage(id, msg, state)
	}
}

// waitOneShotExit polls the PidTable with exponential backoff
// (50 µs -> capped at 10 ms) until the process exits (spec.md §4.3).
// A non-zero or signaled exit is ignored when ignoreFailure is set (the
// "-" exec prefix), matching how runHelper already honors it for
// startpre/startpost/stop helpers.
func (s *Supervisor) waitOneShotExit(id unit.Id, pid int, timeout time.Duration, ignoreFailure bool) error {
	deadline := time.Now().Add(timeout)
	backoff := oneShotPollStart
	for {
		_, owner, term, done := s.pollOneShot(pid)
		if done {
			if !ignoreFailure && (term.Signaled || term.Code != 0) {
				return unit.StartErr(unit.ReasonServiceStartError, unit.DetailBadExitCode,
					fmt.Errorf("oneshot %s exited %+v", owner, term))
			}
			return nil
		}
		if time.Now().After(deadline) {
			return unit.StartErr(unit.ReasonServiceStartError, unit.DetailTimeout, nil)
		}
		time.Sleep(backoff)
		backoff *= 2
		if backoff > oneShotPollCap {
			backoff = oneShotPollCap
		}
	}
}

func (s *Supervisor) pollOneShot(pid int) (int, unit.Id, pidtable.Termination, bool) {
	e, ok := s.pids.Get(pid)
	if !ok || e.Kind != pidtable.KindServiceExited {
		return pid, unit.Id{}, pidtable.Termination{}, false
	}
	return pid, e.UnitId, e.Termination, true
}

// collectSocketFDs gathers the listening fds already opened for every
// socket unit id references, in the shape launch's ExecHelperConfig
// needs (spec.md §4.2: socket fds are handed to the service at start
// exactly as if it had been socket-activated).
func (s *Supervisor) collectSocketFDs(sockets []unit.Id) ([]fdEntry, error) {
	var out []fdEntry
	for _, sockId := range sockets {
		entries, ok := s.fds.GetGlobal(sockId.String())
		if !ok {
			continue
		}
		for _, e := range entries {
			out = append(out, fdEntry{Name: e.Name, Fd: e.Fd})
		}
	}
	return out, nil
}
