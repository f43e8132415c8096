// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package activation

import (
	"sync"

	"github.com/KillingSpark/unitd/internal/unit"
)

// idLocks hands out one mutex per unit id, serializing Activate and
// Deactivate attempts against the same unit without nesting into
// ServiceState/SocketState's own mutex — supervisor.Start/Stop already
// take that lock internally for field writes, so wrapping the whole
// operation in unittable.AcquireState would self-deadlock on the same
// goroutine. This is the engine's substitute for holding the state
// lock across a whole activate/deactivate call.
type idLocks struct {
	mu    sync.Mutex
	locks map[unit.Id]*sync.Mutex
}

func newIdLocks() *idLocks {
	return &idLocks{locks: make(map[unit.Id]*sync.Mutex)}
}

// lock blocks until id's mutex is free, then returns a func that
// releases it. Safe to call concurrently for distinct ids.
func (l *idLocks) lock(id unit.Id) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
