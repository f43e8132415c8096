// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KillingSpark/unitd/internal/activation"
	"github.com/KillingSpark/unitd/internal/config"
	"github.com/KillingSpark/unitd/internal/fdstore"
	"github.com/KillingSpark/unitd/internal/graph"
	"github.com/KillingSpark/unitd/internal/pidtable"
	"github.com/KillingSpark/unitd/internal/supervisor"
	"github.com/KillingSpark/unitd/internal/unit"
	"github.com/KillingSpark/unitd/internal/unittable"
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

func buildTable(t *testing.T, units ...*unit.Unit) *unittable.Table {
	t.Helper()
	byId := make(map[unit.Id]*unit.Unit, len(units))
	for _, u := range units {
		byId[u.Id] = u
	}
	require.NoError(t, graph.Build(byId))

	tbl := unittable.New()
	for _, u := range units {
		require.NoError(t, tbl.Add(u))
	}
	return tbl
}

func newTestDispatcher(t *testing.T, unitDirs []string, units ...*unit.Unit) (*Dispatcher, *unittable.Table) {
	t.Helper()
	tbl := buildTable(t, units...)
	fds := fdstore.New()
	sup := supervisor.New("/unused-self-exe", t.TempDir(), pidtable.New(), fds)
	engine := activation.New(tbl, sup, fds, 2)

	d := &Dispatcher{
		Table:  tbl,
		Engine: engine,
		Config: &config.Config{UnitDirs: unitDirs},
	}
	return d, tbl
}
