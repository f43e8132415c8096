// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KillingSpark/unitd/internal/unit"
)

func mustId(t *testing.T, name string) unit.Id {
	t.Helper()
	id, ok := unit.NewId(name)
	require.True(t, ok, "invalid unit name %q", name)
	return id
}

func svc(t *testing.T, name string, cfg unit.ServiceConfig) *unit.Unit {
	t.Helper()
	return unit.NewUnit(mustId(t, name), "", unit.NewServiceSpecific(cfg))
}

func sock(t *testing.T, name string, cfg unit.SocketConfig) *unit.Unit {
	t.Helper()
	return unit.NewUnit(mustId(t, name), "", unit.NewSocketSpecific(cfg))
}

func tgt(t *testing.T, name string) *unit.Unit {
	t.Helper()
	return unit.NewUnit(mustId(t, name), "", unit.NewTargetSpecific())
}

func toMap(units ...*unit.Unit) map[unit.Id]*unit.Unit {
	m := make(map[unit.Id]*unit.Unit, len(units))
	for _, u := range units {
		m[u.Id] = u
	}
	return m
}

func TestBuild_MirrorsWantsRequiresBefore(t *testing.T) {
	a := svc(t, "a.service", unit.ServiceConfig{})
	b := svc(t, "b.service", unit.ServiceConfig{})
	a.Common.Dependencies.Wants.Add(b.Id)
	a.Common.Dependencies.Requires.Add(b.Id)
	a.Common.Dependencies.Before.Add(b.Id)

	units := toMap(a, b)
	require.NoError(t, Build(units))

	assert.True(t, b.Common.Dependencies.WantedBy.Has(a.Id))
	assert.True(t, b.Common.Dependencies.RequiredBy.Has(a.Id))
	assert.True(t, b.Common.Dependencies.After.Has(a.Id))
}

func TestBuild_SocketServicePairing_ByName(t *testing.T) {
	s := sock(t, "web.socket", unit.SocketConfig{})
	v := svc(t, "web.service", unit.ServiceConfig{})

	units := toMap(s, v)
	require.NoError(t, Build(units))

	assert.True(t, v.Common.Dependencies.After.Has(s.Id))
	assert.True(t, v.Common.Dependencies.Requires.Has(s.Id))
	assert.True(t, s.Common.Dependencies.Before.Has(v.Id))
	assert.True(t, s.Common.Dependencies.RequiredBy.Has(v.Id))
}

func TestBuild_SocketServicePairing_ByExplicitRef(t *testing.T) {
	s := sock(t, "one.socket", unit.SocketConfig{})
	v := svc(t, "other.service", unit.ServiceConfig{Sockets: []unit.Id{s.Id}})

	units := toMap(s, v)
	require.NoError(t, Build(units))

	assert.True(t, v.Common.Dependencies.Requires.Has(s.Id))
	assert.True(t, s.Common.Dependencies.RequiredBy.Has(v.Id))
}

func TestBuild_SocketPairedWithMultipleServices_IsFatal(t *testing.T) {
	s := sock(t, "shared.socket", unit.SocketConfig{})
	v1 := svc(t, "one.service", unit.ServiceConfig{Sockets: []unit.Id{s.Id}})
	v2 := svc(t, "two.service", unit.ServiceConfig{Sockets: []unit.Id{s.Id}})

	units := toMap(s, v1, v2)
	err := Build(units)
	assert.Error(t, err)
}

func TestUnpairedSockets(t *testing.T) {
	s := sock(t, "orphan.socket", unit.SocketConfig{})
	units := toMap(s)
	require.NoError(t, Build(units))

	unpaired := UnpairedSockets(units)
	require.Len(t, unpaired, 1)
	assert.Equal(t, s.Id, unpaired[0])
}

func TestBuild_SocketsTargetWiring(t *testing.T) {
	target := tgt(t, "sockets.target")
	s := sock(t, "web.socket", unit.SocketConfig{})

	units := toMap(target, s)
	require.NoError(t, Build(units))

	assert.True(t, s.Common.Dependencies.Before.Has(target.Id))
	assert.True(t, target.Common.Dependencies.After.Has(s.Id))
	assert.True(t, target.Common.Dependencies.Requires.Has(s.Id))
}

func TestPrune_KeepsOnlyReachableFromTarget(t *testing.T) {
	target := tgt(t, "multi-user.target")
	kept := svc(t, "kept.service", unit.ServiceConfig{})
	dropped := svc(t, "dropped.service", unit.ServiceConfig{})

	target.Common.Dependencies.Requires.Add(kept.Id)
	kept.Common.Dependencies.RequiredBy.Add(target.Id)

	units := toMap(target, kept, dropped)
	removed, err := Prune(units, target.Id)
	require.NoError(t, err)

	assert.ElementsMatch(t, []unit.Id{dropped.Id}, removed)
	_, stillThere := units[dropped.Id]
	assert.False(t, stillThere)
	_, keptThere := units[kept.Id]
	assert.True(t, keptThere)
}

func TestPrune_PurgesRemovedIdsFromRemainingSets(t *testing.T) {
	target := tgt(t, "multi-user.target")
	kept := svc(t, "kept.service", unit.ServiceConfig{})
	dropped := svc(t, "dropped.service", unit.ServiceConfig{})

	target.Common.Dependencies.Requires.Add(kept.Id)
	kept.Common.Dependencies.RequiredBy.Add(target.Id)
	// kept references dropped even though dropped is unreachable from target.
	kept.Common.Dependencies.Wants.Add(dropped.Id)

	units := toMap(target, kept, dropped)
	_, err := Prune(units, target.Id)
	require.NoError(t, err)

	assert.False(t, kept.Common.Dependencies.Wants.Has(dropped.Id))
}

func TestPrune_UnknownTarget(t *testing.T) {
	units := toMap(svc(t, "a.service", unit.ServiceConfig{}))
	_, err := Prune(units, mustId(t, "missing.target"))
	assert.Error(t, err)
}

func TestDetectCycles_NoCycle(t *testing.T) {
	a := svc(t, "a.service", unit.ServiceConfig{})
	b := svc(t, "b.service", unit.ServiceConfig{})
	a.Common.Dependencies.Before.Add(b.Id)
	b.Common.Dependencies.After.Add(a.Id)

	units := toMap(a, b)
	cycles := DetectCycles(units)
	assert.Empty(t, cycles)
}

func TestDetectCycles_SimpleCycle(t *testing.T) {
	a := svc(t, "a.service", unit.ServiceConfig{})
	b := svc(t, "b.service", unit.ServiceConfig{})
	c := svc(t, "c.service", unit.ServiceConfig{})

	a.Common.Dependencies.Before.Add(b.Id)
	b.Common.Dependencies.Before.Add(c.Id)
	c.Common.Dependencies.Before.Add(a.Id)
	// Every node has a nonzero After set since it's a pure cycle; no
	// zero-after root exists, so DetectCycles must still visit it.
	a.Common.Dependencies.After.Add(c.Id)
	b.Common.Dependencies.After.Add(a.Id)
	c.Common.Dependencies.After.Add(b.Id)

	units := toMap(a, b, c)
	cycles := DetectCycles(units)
	require.NotEmpty(t, cycles)
}
