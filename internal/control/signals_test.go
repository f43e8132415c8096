// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalHandler_SIGHUPIsIgnored(t *testing.T) {
	h := NewSignalHandler()
	defer h.Stop()

	var called int32
	go h.Run(func() { atomic.AddInt32(&called, 1) })

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGHUP))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&called))
}

func TestSignalHandler_SIGTERMTriggersShutdown(t *testing.T) {
	h := NewSignalHandler()
	defer h.Stop()

	done := make(chan struct{})
	go h.Run(func() { close(done) })

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("onShutdown was not invoked")
	}
}
