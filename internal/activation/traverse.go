// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package activation

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/KillingSpark/unitd/internal/unit"
	"github.com/KillingSpark/unitd/internal/unittable"
)

// ActivateAll drives the full startup traversal from the given set of
// root units (every unit whose "after" set is empty) to completion: it
// activates roots first, and on each unit's successful activation
// resubmits every unit in its "before" set, so a unit blocked on a
// still-pending dependency is retried once that dependency clears
// (spec.md §4.4). A bounded pool of e.workers goroutines does the
// actual work, grounded on trellis internal/trace/manager.go's
// searchParallel, which runs an errgroup.Group capped the same way.
//
// Every activation that fails with anything other than a
// DependencyError ends up in the returned error slice, prefixed with
// the unit's id. A DependencyError is never recorded: a unit that never
// outgrows one (a cycle that slipped past package graph, or a genuinely
// unsatisfiable dependency) is simply left unstarted and does not
// appear in the slice. The traversal still terminates, since every
// submitted unit's goroutine always returns.
func (e *Engine) ActivateAll(roots []unit.Id) []error {
	g := new(errgroup.Group)
	g.SetLimit(e.workers)

	var mu sync.Mutex
	inflight := make(map[unit.Id]bool)
	retryPending := make(map[unit.Id]bool)
	var errs []error

	var submit func(id unit.Id)
	submit = func(id unit.Id) {
		mu.Lock()
		if inflight[id] {
			retryPending[id] = true
			mu.Unlock()
			return
		}
		inflight[id] = true
		mu.Unlock()

		g.Go(func() error {
			e.runOne(id, &mu, inflight, retryPending, &errs, submit)
			return nil
		})
	}

	for _, r := range roots {
		submit(r)
	}
	_ = g.Wait()
	return errs
}

// runOne activates id, retrying in place if another goroutine's
// completion asked for a resubmit while this attempt was already in
// flight (closing the race where two dependencies of id finish within
// the same instant). On success it fans out to id's "before" set.
func (e *Engine) runOne(
	id unit.Id,
	mu *sync.Mutex,
	inflight, retryPending map[unit.Id]bool,
	errs *[]error,
	submit func(unit.Id),
) {
	for {
		err := e.Activate(id, Regular)

		mu.Lock()
		retry := retryPending[id]
		retryPending[id] = false
		if !retry {
			inflight[id] = false
		}
		mu.Unlock()

		if retry {
			continue
		}

		switch {
		case err == nil:
			u, ok := e.table.Get(id)
			if ok {
				for _, dep := range u.Common.Dependencies.Before.Slice() {
					submit(dep)
				}
			}
		case unit.IsDependencyError(err):
			// nothing to do now; a dependency's own success path will
			// resubmit id via its "before" set once it clears.
		default:
			mu.Lock()
			*errs = append(*errs, fmt.Errorf("%s: %w", id, err))
			mu.Unlock()
		}
		return
	}
}

// Roots returns every unit in table whose "after" set is empty — the
// traversal's starting points.
func Roots(table *unittable.Table) []unit.Id {
	var out []unit.Id
	for _, u := range table.All() {
		if len(u.Common.Dependencies.After) == 0 {
			out = append(out, u.Id)
		}
	}
	return out
}
