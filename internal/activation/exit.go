// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package activation

import (
	"fmt"
	"time"

	"github.com/KillingSpark/unitd/internal/pidtable"
	"github.com/KillingSpark/unitd/internal/unit"
)

// defaultRestartDelay matches trellis's own restartTimer default: a
// fixed pause before a Restart=always service comes back up, not a
// backoff curve. spec.md leaves restart pacing to the implementer; a
// rate limiter is explicitly out of scope, a flat delay is not.
const defaultRestartDelay = time.Second

// handleExit is wired in as the supervisor's ExitHandler. It implements
// spec.md §4.3's exit-handler decision table: a service's own stop
// sequence already expects its process to go away and records the exit
// without further action; a OneShot's own exit is its completion, not a
// failure; Restart=always reactivates in place; anything else cascades
// deactivation to every unit that required it.
func (e *Engine) handleExit(id unit.Id, term pidtable.Termination) {
	u, ok := e.table.Get(id)
	if !ok {
		logExit("activation: exit reported for unknown unit %s", id)
		return
	}
	svc := u.Specific.Service
	if svc == nil {
		return
	}

	release := e.busy.lock(id)

	u.Common.Status.Lock()
	snap := u.Common.Status.Get()

	switch snap.State {
	case unit.StateStopping, unit.StateStopped, unit.StateStarting, unit.StateRestarting, unit.StateNeverStarted:
		// Stop/Restart already own this transition and are watching for
		// the exit themselves (waitExit / waitNotifyReady's own
		// ExitBeforeNotify check); nothing left for the exit handler.
		u.Common.Status.Unlock()
		release()
		return
	}

	if svc.Config.Type == unit.OneShot {
		u.Common.Status.SetStopped(unit.StoppedFinal)
		u.Common.Status.Unlock()
		svc.State.Reset()
		release()
		return
	}

	if svc.Config.Restart == unit.RestartAlways {
		u.Common.Status.SetRestarting()
		u.Common.Status.Unlock()
		release()
		time.AfterFunc(defaultRestartDelay, func() { e.reactivate(id, svc) })
		return
	}

	u.Common.Status.SetStopped(unit.StoppedUnexpected, fmt.Errorf("process exited unexpectedly: %+v", term))
	u.Common.Status.Unlock()
	release()
	go e.cascadeDeactivate(id)
}

// reactivate implements the Restarting -> Starting leg of the state
// diagram: stop whatever is left of the old run, then activate again.
func (e *Engine) reactivate(id unit.Id, svc *unit.ServiceSpecific) {
	svc.State.Lock()
	svc.State.RestartCount++
	svc.State.Unlock()

	if err := e.sup.Stop(id, svc); err != nil {
		logExit("activation: %s: restart cleanup: %v", id, err)
	}
	if err := e.Activate(id, Regular); err != nil && !unit.IsDependencyError(err) {
		logExit("activation: %s: restart failed: %v", id, err)
	}
}

// cascadeDeactivate tears down every unit that required id, transitively,
// after id has stopped unexpectedly and its restart policy is "no"
// (spec.md §4.3/§4.4).
func (e *Engine) cascadeDeactivate(id unit.Id) {
	u, ok := e.table.Get(id)
	if !ok {
		return
	}
	for _, dep := range u.Common.Dependencies.RequiredBy.Slice() {
		if err := e.Deactivate(dep); err != nil {
			logExit("activation: cascade deactivate %s (required %s): %v", dep, id, err)
		}
	}
}
