// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package socketact

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KillingSpark/unitd/internal/activation"
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

// datagramSocketConfig returns a single AF_UNIX datagram socket config
// at a fresh path under t.TempDir, paired with name for readability in
// failures.
func datagramSocketConfig(t *testing.T, name string) (unit.SocketConfig, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	return unit.SocketConfig{
		Sockets: []unit.SingleSocketConfig{{
			Kind: unit.SocketDatagram,
			Addr: unit.SpecializedAddr{Family: unit.AddrUnix, Path: path},
		}},
	}, path
}

// rig bundles a paired socket+service unit pair, already wired through
// graph.Build, with a live Engine and Table ready to drive Activate.
type rig struct {
	table  *unittable.Table
	engine *activation.Engine
	fds    *fdstore.Store
	sockU  *unit.Unit
	svcU   *unit.Unit
	path   string
}

func newRig(t *testing.T) *rig {
	t.Helper()
	cfg, path := datagramSocketConfig(t, "web.sock")
	s := sock(t, "web.socket", cfg)
	v := svc(t, "web.service", unit.ServiceConfig{Sockets: []unit.Id{s.Id}})

	byId := map[unit.Id]*unit.Unit{s.Id: s, v.Id: v}
	require.NoError(t, graph.Build(byId))

	tbl := unittable.New()
	require.NoError(t, tbl.Add(s))
	require.NoError(t, tbl.Add(v))

	fds := fdstore.New()
	sup := supervisor.New("/unused-self-exe", t.TempDir(), pidtable.New(), fds)
	e := activation.New(tbl, sup, fds, 2)

	return &rig{table: tbl, engine: e, fds: fds, sockU: s, svcU: v, path: path}
}

// arm activates the socket (opening its fd) and then the service
// (which, paired with a socket and a Regular source, settles into
// WaitingForSocket without execing anything).
func (r *rig) arm(t *testing.T) {
	t.Helper()
	require.NoError(t, r.engine.Activate(r.sockU.Id, activation.Regular))
	require.NoError(t, r.engine.Activate(r.svcU.Id, activation.Regular))
	require.Equal(t, unit.StartedWaitingForSocket, r.svcU.Common.Status.Get().StartedSub)
}
