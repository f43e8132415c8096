// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package activation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KillingSpark/unitd/internal/unit"
)

func TestDeactivate_NeverStartedIsNoop(t *testing.T) {
	a := tgt(t, "a.target")
	e, _ := newTestEngine(t, a)

	require.NoError(t, e.Deactivate(a.Id))
	assert.Equal(t, unit.StateNeverStarted, a.Common.Status.Get().State)
}

func TestDeactivate_UnknownUnitIsNoop(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.Deactivate(mustId(t, "ghost.target")))
}

func TestDeactivate_StopsDependentsBeforeSelf(t *testing.T) {
	a := tgt(t, "a.target")
	b := tgt(t, "b.target")
	b.Common.Dependencies.Requires.Add(a.Id)
	b.Common.Dependencies.After.Add(a.Id)
	e, tbl := newTestEngine(t, a, b)

	require.Empty(t, e.ActivateAll(Roots(tbl)))

	require.NoError(t, e.Deactivate(a.Id))
	assert.True(t, a.Common.Status.Get().IsStopped())
	assert.True(t, b.Common.Status.Get().IsStopped())
}

func TestDeactivate_AlreadyStoppedIsNoop(t *testing.T) {
	a := tgt(t, "a.target")
	e, _ := newTestEngine(t, a)

	require.NoError(t, e.Activate(a.Id, Regular))
	require.NoError(t, e.Deactivate(a.Id))
	require.NoError(t, e.Deactivate(a.Id))
	assert.Equal(t, unit.StoppedFinal, a.Common.Status.Get().StoppedSub)
}
