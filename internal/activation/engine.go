// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package activation implements the unit state machine and the
// parallel startup/shutdown traversals that drive it (spec.md §4.4).
// Grounded on trellis internal/service/manager.go's ServiceManager:
// startInternal's recursive dependency walk with a cycle-guard
// visiting set, stopInternal's dependent-first teardown with a shared
// stoppingTracker, handleExit's restart-policy decision, and StopAll's
// goroutine-per-unit parallel stop — generalized from a flat
// name-keyed map to the graph-and-lock-protocol model in packages
// unittable and graph, and from "start everything" to a bounded
// worker-pool traversal that re-submits dependents as they unblock.
package activation

import (
	"fmt"
	"log"

	"github.com/KillingSpark/unitd/internal/fdstore"
	"github.com/KillingSpark/unitd/internal/supervisor"
	"github.com/KillingSpark/unitd/internal/unit"
	"github.com/KillingSpark/unitd/internal/unittable"
)

// Source distinguishes an operator/dependency-driven activation from
// one triggered by the socket-activation loop (spec.md §4.4's
// ActivationSource).
type Source int

const (
	Regular Source = iota
	SocketActivation
)

// DefaultWorkers is the startup traversal's bounded worker pool size
// (spec.md §4.4: "a thread pool of configurable size, 6 by default").
const DefaultWorkers = 6

// Engine drives every unit's activate/deactivate state machine. It
// holds no domain state of its own beyond its collaborators: every
// unit's mutable state lives in the Table.
type Engine struct {
	table   *unittable.Table
	sup     *supervisor.Supervisor
	fds     *fdstore.Store
	workers int
	busy    *idLocks
}

// New returns an Engine. workers <= 0 selects DefaultWorkers.
func New(table *unittable.Table, sup *supervisor.Supervisor, fds *fdstore.Store, workers int) *Engine {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	e := &Engine{table: table, sup: sup, fds: fds, workers: workers, busy: newIdLocks()}
	sup.SetExitHandler(e.handleExit)
	return e
}

// Activate runs one unit through Starting -> Started(*), or returns
// the *unit.OperationError describing why it couldn't (spec.md §4.4).
// A DependencyError is not a fault — callers driving a traversal treat
// it as "try again once a dependency finishes".
func (e *Engine) Activate(id unit.Id, source Source) error {
	u, ok := e.table.Get(id)
	if !ok {
		return fmt.Errorf("activation: unknown unit %s", id)
	}

	release := e.busy.lock(id)
	defer release()

	if done, err := e.fastPathDone(u, source); done {
		return err
	}

	if err := e.beginStarting(u); err != nil {
		return err
	}

	startErr := e.start(u, source)

	u.Common.Status.Lock()
	if startErr != nil {
		u.Common.Status.SetStopped(unit.StoppedUnexpected, startErr)
	} else {
		u.Common.Status.SetStarted(e.startedSubState(u, source))
	}
	u.Common.Status.Unlock()

	return startErr
}

// fastPathDone reports whether id needs no further work: already
// Started (idempotent activate), or a WaitingForSocket service seeing
// a second Regular activation (spec.md §4.4: "activation from Regular
// on an already-WaitingForSocket unit is a no-op").
func (e *Engine) fastPathDone(u *unit.Unit, source Source) (bool, error) {
	u.Common.Status.RLock()
	snap := u.Common.Status.Get()
	u.Common.Status.RUnlock()

	if snap.State == unit.StateStarted {
		if snap.StartedSub == unit.StartedWaitingForSocket && source == SocketActivation {
			return false, nil
		}
		return true, nil
	}
	return false, nil
}

// beginStarting checks the Starting preconditions and flips status,
// all under the lock protocol spec.md §4.2/§4.4 require: self
// exclusive, every self.after shared.
func (e *Engine) beginStarting(u *unit.Unit) error {
	reqs := []unittable.Request{{Id: u.Id, Mode: unittable.Exclusive}}
	for id := range u.Common.Dependencies.After {
		reqs = append(reqs, unittable.Request{Id: id, Mode: unittable.Shared})
	}
	release, err := e.table.AcquireStatus(reqs...)
	if err != nil {
		return err
	}
	defer release()

	if missing := e.unsatisfiedAfter(u); len(missing) > 0 {
		return unit.DependencyErr(missing...)
	}
	u.Common.Status.SetStarting()
	return nil
}

// unsatisfiedAfter returns every id in u.after that blocks the
// transition to Starting (spec.md §4.4's precondition): any after-unit
// still NeverStarted, or any after-unit that is also in requires and
// not yet Started.
func (e *Engine) unsatisfiedAfter(u *unit.Unit) []unit.Id {
	var missing []unit.Id
	for id := range u.Common.Dependencies.After {
		dep, ok := e.table.Get(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		snap := dep.Common.Status.Get()
		if snap.State == unit.StateNeverStarted {
			missing = append(missing, id)
			continue
		}
		if u.Common.Dependencies.Requires.Has(id) && !snap.IsStarted() {
			missing = append(missing, id)
		}
	}
	return missing
}

// start dispatches the per-kind work that actually brings a unit up,
// once it is already marked Starting.
func (e *Engine) start(u *unit.Unit, source Source) error {
	switch {
	case u.Specific.Service != nil:
		return e.startService(u, source)
	case u.Specific.Socket != nil:
		return e.startSocket(u)
	default:
		return nil // targets have nothing to do beyond the precondition check
	}
}

// startedSubState decides Running vs WaitingForSocket for the Started
// status this unit settles into.
func (e *Engine) startedSubState(u *unit.Unit, source Source) unit.StartedSubState {
	svc := u.Specific.Service
	if svc == nil {
		return unit.StartedRunning
	}
	if len(svc.Config.Sockets) > 0 && source == Regular {
		return unit.StartedWaitingForSocket
	}
	return unit.StartedRunning
}

// logExit is a small indirection so tests can observe exit handling
// without depending on the global logger.
var logExit = func(format string, args ...interface{}) { log.Printf(format, args...) }
