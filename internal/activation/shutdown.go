// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package activation

import "github.com/KillingSpark/unitd/internal/unit"

// ShutdownAll deactivates every started unit in dependency order:
// repeatedly pick a Started unit none of whose "before" units are
// still Started, deactivate it, and repeat until none remain
// (spec.md §4.6). Unlike ActivateAll this runs serially — shutdown
// is rare enough that a bounded worker pool buys nothing but
// complexity, and trellis's own StopAll/StopWatched likewise just
// walks the remaining set to a fixed point.
func (e *Engine) ShutdownAll() []error {
	var errs []error

	for {
		next, ok := e.pickShutdownCandidate()
		if !ok {
			return errs
		}
		if err := e.Deactivate(next); err != nil {
			errs = append(errs, err)
		}
	}
}

func (e *Engine) pickShutdownCandidate() (unit.Id, bool) {
	for _, u := range e.table.All() {
		u.Common.Status.RLock()
		snap := u.Common.Status.Get()
		u.Common.Status.RUnlock()
		if !snap.IsStarted() {
			continue
		}
		if e.anyBeforeStillStarted(u) {
			continue
		}
		return u.Id, true
	}
	return unit.Id{}, false
}

func (e *Engine) anyBeforeStillStarted(u *unit.Unit) bool {
	for id := range u.Common.Dependencies.Before {
		dep, ok := e.table.Get(id)
		if !ok {
			continue
		}
		dep.Common.Status.RLock()
		started := dep.Common.Status.Get().IsStarted()
		dep.Common.Status.RUnlock()
		if started {
			return true
		}
	}
	return false
}
