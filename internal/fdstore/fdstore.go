// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package fdstore is the sole owner of every listening and
// notify-deposited file descriptor the engine holds. Grounded on
// original_source/src/fd_store.rs: two maps, "global" (fds opened for
// socket units, indexed by socket name) and "service_stored" (fds
// deposited via the FDSTORE=1 notification, indexed by service name
// then fd name). Ownership rule carried over unchanged: the store
// closes every fd it holds when that fd is removed, never when it is
// merely read.
package fdstore

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/KillingSpark/unitd/internal/unit"
)

// Entry is one fd deposited in the global store: the socket unit that
// opened it, the name exposed via LISTEN_FDNAMES, and the fd itself.
type Entry struct {
	Id   unit.Id
	Name string
	Fd   int
}

// FDIdPair names one fd by the unit that owns it, for the
// socket-activation loop's fan-in bookkeeping.
type FDIdPair struct {
	Fd int
	Id unit.Id
}

// Store is the FDStore (spec.md §3). All methods are safe for
// concurrent use; callers never need an external lock around it.
type Store struct {
	mu            sync.RWMutex
	global        map[string][]Entry
	serviceStored map[string]map[string][]int
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		global:        make(map[string][]Entry),
		serviceStored: make(map[string]map[string][]int),
	}
}

// GlobalFdsToIds flattens every global entry into (fd, owning unit id)
// pairs, used to build the socket-activation loop's select set.
func (s *Store) GlobalFdsToIds() []FDIdPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []FDIdPair
	for _, entries := range s.global {
		for _, e := range entries {
			out = append(out, FDIdPair{Fd: e.Fd, Id: e.Id})
		}
	}
	return out
}

// InsertGlobal stores newEntries under name if name is not already
// present. If it is, newEntries are returned unchanged and NOT stored
// — the caller (which already owns them) is responsible for closing
// them, matching original_source's insert_global contract.
func (s *Store) InsertGlobal(name string, newEntries []Entry) (rejected []Entry, inserted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.global[name]; exists {
		return newEntries, false
	}
	s.global[name] = newEntries
	return nil, true
}

// RemoveGlobal removes and closes every fd stored under name.
func (s *Store) RemoveGlobal(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.global[name]
	if !ok {
		return false
	}
	delete(s.global, name)
	for _, e := range entries {
		_ = unix.Close(e.Fd)
	}
	return true
}

// GetGlobal returns a copy of the entries stored under name, without
// removing or closing anything.
func (s *Store) GetGlobal(name string) ([]Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, ok := s.global[name]
	if !ok {
		return nil, false
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out, true
}

// InsertServiceStored appends fds deposited via FDSTORE=1 under
// (serviceName, fdName).
func (s *Store) InsertServiceStored(serviceName, fdName string, fds []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byName, ok := s.serviceStored[serviceName]
	if !ok {
		byName = make(map[string][]int)
		s.serviceStored[serviceName] = byName
	}
	byName[fdName] = append(byName[fdName], fds...)
}

// RemoveServiceStored removes and returns the fds stored under
// (serviceName, fdName). Ownership transfers to the caller — these
// are not closed here, matching original_source's remove_service_stored
// (the fds are handed onward to the restarting service, not discarded).
func (s *Store) RemoveServiceStored(serviceName, fdName string) ([]int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byName, ok := s.serviceStored[serviceName]
	if !ok {
		return nil, false
	}
	fds, ok := byName[fdName]
	if !ok {
		return nil, false
	}
	delete(byName, fdName)
	return fds, true
}

// GetServiceStored returns a copy of the fds stored under
// (serviceName, fdName), without removing anything.
func (s *Store) GetServiceStored(serviceName, fdName string) ([]int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byName, ok := s.serviceStored[serviceName]
	if !ok {
		return nil, false
	}
	fds, ok := byName[fdName]
	if !ok {
		return nil, false
	}
	out := make([]int, len(fds))
	copy(out, fds)
	return out, true
}

// Close closes every fd the store still owns, global and
// service-stored alike. Used during engine shutdown.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for name, entries := range s.global {
		for _, e := range entries {
			if err := unix.Close(e.Fd); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("fdstore: close %s/%s: %w", name, e.Name, err)
			}
		}
	}
	s.global = make(map[string][]Entry)
	for svc, byName := range s.serviceStored {
		for fdName, fds := range byName {
			for _, fd := range fds {
				if err := unix.Close(fd); err != nil && firstErr == nil {
					firstErr = fmt.Errorf("fdstore: close %s/%s: %w", svc, fdName, err)
				}
			}
		}
	}
	s.serviceStored = make(map[string]map[string][]int)
	return firstErr
}
