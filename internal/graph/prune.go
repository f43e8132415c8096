// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"

	"github.com/KillingSpark/unitd/internal/unit"
)

// Prune computes the reflexive-transitive closure of target under
// requires ∪ wants ∪ required_by ∪ wanted_by and removes every unit
// outside that closure from units, purging the removed ids from every
// remaining unit's dependency sets (spec.md §4.1 step 3). It returns
// the set of removed ids.
func Prune(units map[unit.Id]*unit.Unit, target unit.Id) ([]unit.Id, error) {
	if _, ok := units[target]; !ok {
		return nil, fmt.Errorf("graph: prune target %s not found", target)
	}

	keep := unit.NewIdSet()
	queue := []unit.Id{target}
	keep.Add(target)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		u, ok := units[id]
		if !ok {
			continue
		}
		deps := u.Common.Dependencies
		for _, set := range []unit.IdSet{deps.Requires, deps.Wants, deps.RequiredBy, deps.WantedBy} {
			for next := range set {
				if keep.Add(next) {
					queue = append(queue, next)
				}
			}
		}
	}

	var removed []unit.Id
	for id := range units {
		if !keep.Has(id) {
			removed = append(removed, id)
		}
	}
	for _, id := range removed {
		delete(units, id)
	}
	for _, u := range units {
		for _, id := range removed {
			u.Common.Dependencies.PurgeId(id)
		}
	}
	return removed, nil
}
