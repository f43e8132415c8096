// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package unittable

import (
	"fmt"
	"sort"

	"github.com/KillingSpark/unitd/internal/unit"
)

// Mode selects exclusive or shared acquisition of a unit's lock.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

// Request names one unit and the mode its status (or specific.state,
// depending which Acquire* method is called) must be locked in.
type Request struct {
	Id   unit.Id
	Mode Mode
}

// rwLocker is satisfied by unit.Status, unit.ServiceState and
// unit.SocketState: each exposes Lock/Unlock/RLock/RUnlock so this
// package can fold acquisition across several of them into the
// sorted, all-at-once protocol spec.md §4.2 requires.
type rwLocker interface {
	Lock()
	Unlock()
	RLock()
	RUnlock()
}

type lockEntry struct {
	id     unit.Id
	mode   Mode
	locker rwLocker
}

// Release unlocks every lock an Acquire* call took, in the reverse of
// acquisition order.
type Release func()

// dedupe collapses duplicate ids in reqs, upgrading to Exclusive
// whenever an id is requested both Shared and Exclusive — "never
// acquire a shared lock for an id that will also be acquired
// exclusively" (spec.md §4.2 step 3).
func dedupe(reqs []Request) []Request {
	byId := make(map[unit.Id]Mode, len(reqs))
	for _, r := range reqs {
		existing, ok := byId[r.Id]
		if !ok {
			byId[r.Id] = r.Mode
		} else if r.Mode == Exclusive && existing != Exclusive {
			byId[r.Id] = Exclusive
		}
	}
	out := make([]Request, 0, len(byId))
	for id, mode := range byId {
		out = append(out, Request{Id: id, Mode: mode})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id.Less(out[j].Id) })
	return out
}

func acquire(entries []lockEntry) Release {
	for _, e := range entries {
		if e.mode == Exclusive {
			e.locker.Lock()
		} else {
			e.locker.RLock()
		}
	}
	return func() {
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			if e.mode == Exclusive {
				e.locker.Unlock()
			} else {
				e.locker.RUnlock()
			}
		}
	}
}

// AcquireStatus dedupes and sorts reqs by UnitId, then locks each
// named unit's Status in that order (spec.md §4.2 steps 1-3). The
// returned Release unlocks everything in reverse order; callers must
// call it exactly once. The Table's own lock is never held while this
// runs.
func (t *Table) AcquireStatus(reqs ...Request) (Release, error) {
	deduped := dedupe(reqs)
	entries := make([]lockEntry, 0, len(deduped))
	for _, r := range deduped {
		u, ok := t.Get(r.Id)
		if !ok {
			return nil, fmt.Errorf("unittable: unknown unit %s", r.Id)
		}
		entries = append(entries, lockEntry{id: r.Id, mode: r.Mode, locker: u.Common.Status})
	}
	return acquire(entries), nil
}

// AcquireState dedupes and sorts reqs by UnitId, then locks each named
// unit's specific.state (the ServiceState or SocketState guarding its
// Specific arm) in that order. Target units have no state lock and
// are rejected.
func (t *Table) AcquireState(reqs ...Request) (Release, error) {
	deduped := dedupe(reqs)
	entries := make([]lockEntry, 0, len(deduped))
	for _, r := range deduped {
		u, ok := t.Get(r.Id)
		if !ok {
			return nil, fmt.Errorf("unittable: unknown unit %s", r.Id)
		}
		locker, err := stateLocker(u)
		if err != nil {
			return nil, err
		}
		entries = append(entries, lockEntry{id: r.Id, mode: r.Mode, locker: locker})
	}
	return acquire(entries), nil
}

func stateLocker(u *unit.Unit) (rwLocker, error) {
	switch {
	case u.Specific.Service != nil:
		return u.Specific.Service.State, nil
	case u.Specific.Socket != nil:
		return u.Specific.Socket.State, nil
	default:
		return nil, fmt.Errorf("unittable: unit %s has no state lock (target)", u.Id)
	}
}
