// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package graph builds the dependency graph across a flat map of
// parsed units: edge mirroring, implicit socket/service pairing and
// sockets.target wiring, pruning to a chosen target, and cycle
// detection over the before/after order (spec.md §4.1). New to
// satisfy the spec; the scheduling-order half is grounded on trellis
// `internal/service/manager.go`'s StartAll repeated-pass topological
// sort, generalized from a single flat pass into a proper graph.
package graph

import (
	"fmt"
	"sort"

	"github.com/KillingSpark/unitd/internal/unit"
)

// SocketsTargetName is the well-known target every socket is ordered
// before, and which every socket-bearing system pulls in.
const SocketsTargetName = "sockets.target"

// Build mirrors every dependency edge and wires the implicit
// socket/service and sockets.target relations (spec.md §4.1 steps 1-2).
// It mutates the Dependencies of every unit in units in place.
func Build(units map[unit.Id]*unit.Unit) error {
	mirror(units)
	if err := pairSocketsAndServices(units); err != nil {
		return err
	}
	wireSocketsTarget(units)
	// Pairing and sockets.target wiring both add edges; mirror again so
	// every new edge gets its inverse.
	mirror(units)
	return nil
}

// mirror adds the inverse of every wants/requires/before edge and
// dedupes every set. It is idempotent: running it twice has no
// further effect.
func mirror(units map[unit.Id]*unit.Unit) {
	type edge struct {
		from, to unit.Id
	}

	collect := func(get func(*unit.Unit) unit.IdSet) []edge {
		var edges []edge
		for id, u := range units {
			for to := range get(u) {
				edges = append(edges, edge{from: id, to: to})
			}
		}
		return edges
	}

	for _, e := range collect(func(u *unit.Unit) unit.IdSet { return u.Common.Dependencies.Wants }) {
		if other, ok := units[e.to]; ok {
			other.Common.Dependencies.WantedBy.Add(e.from)
		}
	}
	for _, e := range collect(func(u *unit.Unit) unit.IdSet { return u.Common.Dependencies.WantedBy }) {
		if other, ok := units[e.to]; ok {
			other.Common.Dependencies.Wants.Add(e.from)
		}
	}
	for _, e := range collect(func(u *unit.Unit) unit.IdSet { return u.Common.Dependencies.Requires }) {
		if other, ok := units[e.to]; ok {
			other.Common.Dependencies.RequiredBy.Add(e.from)
		}
	}
	for _, e := range collect(func(u *unit.Unit) unit.IdSet { return u.Common.Dependencies.RequiredBy }) {
		if other, ok := units[e.to]; ok {
			other.Common.Dependencies.Requires.Add(e.from)
		}
	}
	for _, e := range collect(func(u *unit.Unit) unit.IdSet { return u.Common.Dependencies.Before }) {
		if other, ok := units[e.to]; ok {
			other.Common.Dependencies.After.Add(e.from)
		}
	}
	for _, e := range collect(func(u *unit.Unit) unit.IdSet { return u.Common.Dependencies.After }) {
		if other, ok := units[e.to]; ok {
			other.Common.Dependencies.Before.Add(e.from)
		}
	}
}

// pairSocketsAndServices implements the Socket ⇄ Service pairing rule
// (spec.md §4.1 step 2a): name-based pairing, or explicit
// v.sockets/s.services cross-reference pairing. A socket paired with
// more than one service is a fatal configuration error; a socket
// paired with zero services is left for the caller to warn about and
// prune (see UnpairedSockets).
func pairSocketsAndServices(units map[unit.Id]*unit.Unit) error {
	sockets := make([]*unit.Unit, 0)
	services := make([]*unit.Unit, 0)
	for _, u := range units {
		if _, ok := u.IsSocket(); ok {
			sockets = append(sockets, u)
		}
		if _, ok := u.IsService(); ok {
			services = append(services, u)
		}
	}
	sort.Slice(sockets, func(i, j int) bool { return sockets[i].Id.Less(sockets[j].Id) })
	sort.Slice(services, func(i, j int) bool { return services[i].Id.Less(services[j].Id) })

	for _, s := range sockets {
		sockSpec := s.Specific.Socket
		paired := unit.NewIdSet()
		for _, v := range services {
			byName := s.Id.BaseName() == v.Id.BaseName()
			svcSpec := v.Specific.Service
			bySvcRef := containsId(svcSpec.Config.Sockets, s.Id)
			bySockRef := containsId(sockSpec.Config.Services, v.Id)
			if byName || (bySvcRef != bySockRef) {
				paired.Add(v.Id)
			}
		}
		if len(paired) > 1 {
			return fmt.Errorf("graph: socket %s paired with more than one service: %v", s.Id, paired.Slice())
		}
		for vid := range paired {
			v := units[vid]
			v.Common.Dependencies.After.Add(s.Id)
			v.Common.Dependencies.Requires.Add(s.Id)
			s.Common.Dependencies.Before.Add(vid)
			s.Common.Dependencies.RequiredBy.Add(vid)
		}
	}
	return nil
}

func containsId(ids []unit.Id, target unit.Id) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

// wireSocketsTarget implements spec.md §4.1 step 2b: if sockets.target
// is present, every socket gets before ∪= {sockets.target}, and the
// target gets after/requires ∪= every socket.
func wireSocketsTarget(units map[unit.Id]*unit.Unit) {
	targetId, ok := unit.NewId(SocketsTargetName)
	if !ok {
		return
	}
	target, ok := units[targetId]
	if !ok {
		return
	}
	for id, u := range units {
		if _, ok := u.IsSocket(); !ok {
			continue
		}
		u.Common.Dependencies.Before.Add(targetId)
		target.Common.Dependencies.After.Add(id)
		target.Common.Dependencies.Requires.Add(id)
	}
}

// UnpairedSockets returns every socket unit with no paired service
// (Before set does not include a service and RequiredBy is empty of
// services) for the caller to warn about before pruning them.
func UnpairedSockets(units map[unit.Id]*unit.Unit) []unit.Id {
	var out []unit.Id
	for id, u := range units {
		if _, ok := u.IsSocket(); !ok {
			continue
		}
		hasService := false
		for other := range u.Common.Dependencies.RequiredBy {
			if ou, ok := units[other]; ok {
				if _, isSvc := ou.IsService(); isSvc {
					hasService = true
					break
				}
			}
		}
		if !hasService {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
