// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package activation

import (
	"golang.org/x/sys/unix"

	"github.com/KillingSpark/unitd/internal/fdstore"
	"github.com/KillingSpark/unitd/internal/unit"
)

// startService brings a service unit up. A service configured with
// Sockets and activated Regular-ly only needs its paired sockets
// opened — the real exec is deferred to the socket-activation loop's
// first connection (spec.md §4.4/§4.5); any other combination execs
// immediately via the process supervisor.
func (e *Engine) startService(u *unit.Unit, source Source) error {
	svc := u.Specific.Service

	if len(svc.Config.Sockets) > 0 && source == Regular {
		for _, sockId := range svc.Config.Sockets {
			if err := e.Activate(sockId, Regular); err != nil && !unit.IsDependencyError(err) {
				return err
			}
		}
		return nil
	}

	return e.sup.Start(u.Id, svc)
}

// stopService tears a service unit down via the process supervisor.
func (e *Engine) stopService(u *unit.Unit) error {
	return e.sup.Stop(u.Id, u.Specific.Service)
}

// startSocket opens every listening socket/FIFO a .socket unit
// configures and deposits the resulting fds in the FDStore under the
// socket's own id, so the socket-activation loop and collectSocketFDs
// can find them. Idempotent: a socket already holding fds is a no-op.
func (e *Engine) startSocket(u *unit.Unit) error {
	sock := u.Specific.Socket

	if _, ok := e.fds.GetGlobal(u.Id.String()); ok {
		return nil
	}

	entries := make([]fdstore.Entry, 0, len(sock.Config.Sockets))
	for _, single := range sock.Config.Sockets {
		fd, err := openSingleSocket(single)
		if err != nil {
			for _, opened := range entries {
				_ = unix.Close(opened.Fd)
			}
			return unit.StartErr(unit.ReasonSocketOpenError, "listen", err)
		}
		entries = append(entries, fdstore.Entry{Id: u.Id, Name: single.FileDescName, Fd: fd})
	}

	if rejected, inserted := e.fds.InsertGlobal(u.Id.String(), entries); !inserted {
		for _, e2 := range rejected {
			_ = unix.Close(e2.Fd)
		}
	}
	return nil
}

// stopSocket closes every fd a .socket unit holds and clears its
// activated flag so a future activation reopens them.
func (e *Engine) stopSocket(u *unit.Unit) error {
	e.fds.RemoveGlobal(u.Id.String())
	sock := u.Specific.Socket
	sock.State.Lock()
	sock.State.Activated = false
	sock.State.Unlock()
	return nil
}
