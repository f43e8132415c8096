// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package socketact

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KillingSpark/unitd/internal/activation"
	"github.com/KillingSpark/unitd/internal/unit"
)

func TestLoop_TrafficActivatesWaitingService(t *testing.T) {
	r := newRig(t)
	r.arm(t)

	l, err := New(r.table, r.fds, r.engine)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	// Give the watcher goroutine a moment to start polling before
	// sending, deterministic readiness aside.
	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return len(l.watching) == 1
	}, time.Second, time.Millisecond)

	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: r.path, Net: "unixgram"})
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("x"))
	require.NoError(t, err)

	// The exec of /unused-self-exe fails, so the service lands in
	// Stopped(Unexpected) rather than Running, but that failure is only
	// reachable through Activate(..., SocketActivation) having fired.
	require.Eventually(t, func() bool {
		return r.svcU.Common.Status.Get().IsStopped()
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		r.sockU.Specific.Socket.State.RLock()
		defer r.sockU.Specific.Socket.State.RUnlock()
		return r.sockU.Specific.Socket.State.Activated
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLoop_HandleWake_SkipsWhenServiceNotWaiting(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.engine.Activate(r.sockU.Id, activation.Regular))
	// Service never activated: still NeverStarted, not WaitingForSocket.

	l, err := New(r.table, r.fds, r.engine)
	require.NoError(t, err)

	l.handleWake(r.sockU.Id)

	assert.Equal(t, unit.StateNeverStarted, r.svcU.Common.Status.Get().State)
	r.sockU.Specific.Socket.State.RLock()
	defer r.sockU.Specific.Socket.State.RUnlock()
	assert.True(t, r.sockU.Specific.Socket.State.Activated)
}

func TestLoop_HandleWake_UnknownSocketIsNoop(t *testing.T) {
	r := newRig(t)
	l, err := New(r.table, r.fds, r.engine)
	require.NoError(t, err)

	ghost := mustId(t, "ghost.socket")
	l.handleWake(ghost)
}

func TestLoop_Rescan_SkipsAlreadyActivatedSocket(t *testing.T) {
	r := newRig(t)
	r.arm(t)

	r.sockU.Specific.Socket.State.Lock()
	r.sockU.Specific.Socket.State.Activated = true
	r.sockU.Specific.Socket.State.Unlock()

	l, err := New(r.table, r.fds, r.engine)
	require.NoError(t, err)

	l.Rescan()
	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.watching)
}
