// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package unittable is the canonical store of units keyed by UnitId,
// plus the partial-order lock-acquisition protocol used to touch
// several units' locks without deadlocking. Grounded on trellis's
// internal/service.ServiceManager (a sync.RWMutex-guarded
// map[string]*managedService), generalized from a single mutex per
// manager to per-unit status/state locks plus a protocol for
// acquiring several of them together.
package unittable

import (
	"fmt"
	"sort"
	"sync"

	"github.com/KillingSpark/unitd/internal/unit"
)

// Table is the Unit Table: an immutable-keys, per-unit-interior-mutable
// map of every unit known to the engine. Table.mu guards only the map
// structure (insert/lookup/remove/iterate); it is never held across a
// status or specific.state lock acquisition (spec.md §4.2).
type Table struct {
	mu    sync.RWMutex
	units map[unit.Id]*unit.Unit
}

// New returns an empty Table.
func New() *Table {
	return &Table{units: make(map[unit.Id]*unit.Unit)}
}

// Add inserts u, keyed by its Id. It returns an error if the id is
// already present.
func (t *Table) Add(u *unit.Unit) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.units[u.Id]; exists {
		return fmt.Errorf("unittable: duplicate unit %s", u.Id)
	}
	t.units[u.Id] = u
	return nil
}

// Get looks up a unit by id.
func (t *Table) Get(id unit.Id) (*unit.Unit, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u, ok := t.units[id]
	return u, ok
}

// Remove deletes a unit from the table. It is a no-op if absent.
func (t *Table) Remove(id unit.Id) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.units, id)
}

// Len reports the number of units in the table.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.units)
}

// All returns every unit in the table, sorted by Id for deterministic
// iteration (listing, dumps, dependency graph construction).
func (t *Table) All() []*unit.Unit {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*unit.Unit, 0, len(t.units))
	for _, u := range t.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id.Less(out[j].Id) })
	return out
}

// Ids returns the sorted id set of every unit in the table.
func (t *Table) Ids() []unit.Id {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]unit.Id, 0, len(t.units))
	for id := range t.units {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
