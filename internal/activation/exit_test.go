// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package activation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KillingSpark/unitd/internal/pidtable"
	"github.com/KillingSpark/unitd/internal/unit"
)

func startedService(t *testing.T, name string, cfg unit.ServiceConfig) *unit.Unit {
	t.Helper()
	u := svc(t, name, cfg)
	u.Common.Status.Lock()
	u.Common.Status.SetStarting()
	u.Common.Status.SetStarted(unit.StartedRunning)
	u.Common.Status.Unlock()
	return u
}

func TestHandleExit_OneShotSettlesStoppedFinal(t *testing.T) {
	u := startedService(t, "job.service", unit.ServiceConfig{Type: unit.OneShot})
	e, _ := newTestEngine(t, u)

	e.handleExit(u.Id, pidtable.Termination{Code: 0})

	snap := u.Common.Status.Get()
	assert.True(t, snap.IsStopped())
	assert.Equal(t, unit.StoppedFinal, snap.StoppedSub)
}

func TestHandleExit_RestartAlwaysMovesToRestarting(t *testing.T) {
	u := startedService(t, "web.service", unit.ServiceConfig{Type: unit.Simple, Restart: unit.RestartAlways})
	e, _ := newTestEngine(t, u)

	e.handleExit(u.Id, pidtable.Termination{Code: 1})

	assert.Equal(t, unit.StateRestarting, u.Common.Status.Get().State)
}

func TestHandleExit_RestartNoCascadesToStoppedUnexpected(t *testing.T) {
	u := startedService(t, "web.service", unit.ServiceConfig{Type: unit.Simple, Restart: unit.RestartNo})
	e, _ := newTestEngine(t, u)

	e.handleExit(u.Id, pidtable.Termination{Code: 1})

	snap := u.Common.Status.Get()
	assert.True(t, snap.IsStopped())
	assert.Equal(t, unit.StoppedUnexpected, snap.StoppedSub)
}

func TestHandleExit_IgnoredWhileStoppingOrStarting(t *testing.T) {
	for _, state := range []unit.State{unit.StateStopping, unit.StateStarting, unit.StateStopped, unit.StateNeverStarted} {
		u := svc(t, "web.service", unit.ServiceConfig{Type: unit.Simple, Restart: unit.RestartNo})
		u.Common.Status.Lock()
		switch state {
		case unit.StateStopping:
			u.Common.Status.SetStarting()
			u.Common.Status.SetStarted(unit.StartedRunning)
			u.Common.Status.SetStopping()
		case unit.StateStarting:
			u.Common.Status.SetStarting()
		case unit.StateStopped:
			u.Common.Status.SetStopped(unit.StoppedFinal)
		}
		u.Common.Status.Unlock()

		e, _ := newTestEngine(t, u)
		e.handleExit(u.Id, pidtable.Termination{Code: 1})
		assert.Equal(t, state, u.Common.Status.Get().State)
	}
}

func TestHandleExit_NonServiceUnitIsNoop(t *testing.T) {
	u := tgt(t, "multi-user.target")
	e, _ := newTestEngine(t, u)
	e.handleExit(u.Id, pidtable.Termination{})
	assert.Equal(t, unit.StateNeverStarted, u.Common.Status.Get().State)
}

func TestHandleExit_UnknownUnitLogsAndReturns(t *testing.T) {
	e, _ := newTestEngine(t)
	e.handleExit(mustId(t, "ghost.service"), pidtable.Termination{})
}
