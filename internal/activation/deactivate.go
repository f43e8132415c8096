// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package activation

import (
	"github.com/KillingSpark/unitd/internal/unit"
)

// Deactivate runs one unit through Started -> Stopping -> Stopped
// (spec.md §4.4). It is idempotent: a unit that is already
// NeverStarted or Stopped is left alone. Grounded on trellis
// stopInternal's dependents-first teardown (internal/service/manager.go):
// before this unit's own stop work runs, everything that requires it
// is torn down first, recursively.
func (e *Engine) Deactivate(id unit.Id) error {
	u, ok := e.table.Get(id)
	if !ok {
		return nil
	}

	for _, dep := range u.Common.Dependencies.RequiredBy.Slice() {
		if err := e.Deactivate(dep); err != nil {
			return err
		}
	}

	release := e.busy.lock(id)
	defer release()

	u.Common.Status.Lock()
	snap := u.Common.Status.Get()
	if snap.State == unit.StateNeverStarted || snap.State == unit.StateStopped {
		u.Common.Status.Unlock()
		return nil
	}
	u.Common.Status.SetStopping()
	u.Common.Status.Unlock()

	stopErr := e.stop(u)

	// A failure during deactivation still lands in StoppedFinal: the
	// unit is considered stopped regardless, so the system keeps
	// making progress toward quiescence instead of stalling on a
	// teardown error. stopErr is still recorded on the status and
	// returned to the caller.
	u.Common.Status.Lock()
	if stopErr != nil {
		u.Common.Status.SetStopped(unit.StoppedFinal, stopErr)
	} else {
		u.Common.Status.SetStopped(unit.StoppedFinal)
	}
	u.Common.Status.Unlock()

	return stopErr
}

// stop dispatches the per-kind teardown work, mirroring start's dispatch.
func (e *Engine) stop(u *unit.Unit) error {
	switch {
	case u.Specific.Service != nil:
		return e.stopService(u)
	case u.Specific.Socket != nil:
		return e.stopSocket(u)
	default:
		return nil
	}
}
