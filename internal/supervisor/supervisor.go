// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/KillingSpark/unitd/internal/fdstore"
	"github.com/KillingSpark/unitd/internal/notify"
	"github.com/KillingSpark/unitd/internal/pidtable"
	"github.com/KillingSpark/unitd/internal/platform"
	"github.com/KillingSpark/unitd/internal/unit"
)

// ExitHandler is invoked once a service's main process has exited and
// been recorded in the PidTable, exactly mirroring
// original_source/src/services/service_exit_handler.rs's entrypoint
// (the restart-vs-cascade decision itself lives one layer up, in
// package activation, which wires this in via SetExitHandler).
type ExitHandler func(id unit.Id, term pidtable.Termination)

// Supervisor forks, tracks, and reaps every process belonging to
// every unit, and runs the four readiness protocols.
type Supervisor struct {
	pids   *pidtable.Table
	fds    *fdstore.Store
	selfExe string
	notifyDir string

	userLookup  func(name string) (uid, gid int, groups []int, err error)
	groupLookup func(name string) (gid int, err error)

	notifySockets map[unit.Id]*notify.Listener
	notifyLoops   map[unit.Id]chan struct{}

	exitHandler ExitHandler
}

// New returns a Supervisor. selfExe is the absolute path to the
// running unitd binary (re-exec'd under HelperArgv0 for every forked
// process); notifyDir is the directory notification sockets are
// created under.
func New(selfExe, notifyDir string, pids *pidtable.Table, fds *fdstore.Store) *Supervisor {
	return &Supervisor{
		pids:          pids,
		fds:           fds,
		selfExe:       selfExe,
		notifyDir:     notifyDir,
		userLookup:    platform.LookupUser,
		groupLookup:   platform.LookupGroup,
		notifySockets: make(map[unit.Id]*notify.Listener),
		notifyLoops:   make(map[unit.Id]chan struct{}),
	}
}

// SetExitHandler installs the callback invoked after a service's main
// process has exited. Must be called once during engine wiring, before
// any service is started.
func (s *Supervisor) SetExitHandler(h ExitHandler) { s.exitHandler = h }

// notifySocketPath returns the well-known path for id's notification
// socket (spec.md §4.3 step 1).
func (s *Supervisor) notifySocketPath(id unit.Id) string {
	return filepath.Join(s.notifyDir, id.String()+".notify_socket")
}

// ensureNotifySocket lazily creates and caches id's notification
// listener.
func (s *Supervisor) ensureNotifySocket(id unit.Id) (*notify.Listener, error) {
	if l, ok := s.notifySockets[id]; ok {
		return l, nil
	}
	l, err := notify.NewListener(s.notifySocketPath(id))
	if err != nil {
		return nil, fmt.Errorf("supervisor: notify socket for %s: %w", id, err)
	}
	s.notifySockets[id] = l
	return l, nil
}

// closeNotifySocket tears down and forgets id's notification listener,
// called once the service is fully stopped.
func (s *Supervisor) closeNotifySocket(id unit.Id) {
	l, ok := s.notifySockets[id]
	if !ok {
		return
	}
	if err := l.Close(); err != nil {
		log.Printf("supervisor: close notify socket for %s: %v", id, err)
	}
	delete(s.notifySockets, id)
}
