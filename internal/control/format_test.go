// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KillingSpark/unitd/internal/unit"
)

func TestFormatUnit_Target(t *testing.T) {
	u := tgt(t, "default.target")
	out := FormatUnit(u)
	assert.Equal(t, "default.target", out["name"])
	assert.Equal(t, "never-started", out["status"])
}

func TestFormatUnit_Service_IncludesSockets(t *testing.T) {
	u := svc(t, "web.service", unit.ServiceConfig{Sockets: []unit.Id{mustId(t, "web.socket")}})
	out := FormatUnit(u)
	assert.Equal(t, []string{"web.socket"}, out["sockets"])
	assert.Equal(t, 0, out["restart_count"])
}

func TestFormatUnit_Socket_IncludesActivatedFlag(t *testing.T) {
	u := sock(t, "web.socket", unit.SocketConfig{})
	out := FormatUnit(u)
	assert.Equal(t, false, out["activated"])
}

func TestUnitStatusName_StartedIncludesSubState(t *testing.T) {
	snap := unit.Snapshot{State: unit.StateStarted, StartedSub: unit.StartedWaitingForSocket}
	assert.Equal(t, "started (waiting-for-socket)", unitStatusName(snap))
}
