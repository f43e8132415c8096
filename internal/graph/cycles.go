// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"sort"

	"github.com/KillingSpark/unitd/internal/unit"
)

type dfsState int

const (
	unvisited dfsState = iota
	visiting
	done
)

// DetectCycles walks the before edges only, starting from the set of
// zero-after roots, and reports every cycle found (by the ids on its
// back edge path) without aborting on the first (spec.md §4.1 step 4).
func DetectCycles(units map[unit.Id]*unit.Unit) [][]unit.Id {
	state := make(map[unit.Id]dfsState, len(units))
	var cycles [][]unit.Id

	var roots []unit.Id
	for id, u := range units {
		if len(u.Common.Dependencies.After) == 0 {
			roots = append(roots, id)
		}
	}
	// Units with no zero-after root reachable (every id is in some
	// after-cycle among themselves) still need visiting so their
	// cycles are reported too.
	var all []unit.Id
	for id := range units {
		all = append(all, id)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Less(roots[j]) })
	sort.Slice(all, func(i, j int) bool { return all[i].Less(all[j]) })

	var path []unit.Id
	var visit func(id unit.Id)
	visit = func(id unit.Id) {
		switch state[id] {
		case done:
			return
		case visiting:
			// Found a back edge: report the cycle from its first
			// occurrence in path to here.
			for i, p := range path {
				if p == id {
					cycle := append([]unit.Id{}, path[i:]...)
					cycle = append(cycle, id)
					cycles = append(cycles, cycle)
					return
				}
			}
			return
		}
		u, ok := units[id]
		if !ok {
			return
		}
		state[id] = visiting
		path = append(path, id)
		next := u.Common.Dependencies.Before.Slice()
		for _, n := range next {
			visit(n)
		}
		path = path[:len(path)-1]
		state[id] = done
	}

	for _, id := range roots {
		visit(id)
	}
	for _, id := range all {
		if state[id] == unvisited {
			visit(id)
		}
	}

	return cycles
}
