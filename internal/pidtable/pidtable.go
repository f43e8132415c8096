// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package pidtable tracks every process the supervisor has forked,
// keyed by PID. Grounded on original_source/src/units/runtime_info.rs's
// PidTable/PidEntry and src/services/service_exit_handler.rs's use of
// it: a process is launched either as a unit's main service or as a
// helper (Exec*/Stop* command), and once SIGCHLD reports it dead its
// entry is rewritten in place to the matching *Exited variant so the
// thread waiting on that PID can pick up the termination without a
// race against the reaper.
package pidtable

import (
	"sort"
	"sync"

	"github.com/KillingSpark/unitd/internal/unit"
)

// Termination describes how a child process ended, mirroring
// ChildTermination in original_source/src/signal_handler.rs.
type Termination struct {
	// Signaled is true if the process was killed by a signal rather
	// than exiting on its own.
	Signaled bool
	// Code is the exit code when Signaled is false.
	Code int
	// Signal is the terminating signal number when Signaled is true.
	Signal int
}

// Kind distinguishes the four PidEntry variants.
type Kind int

const (
	KindService Kind = iota
	KindServiceExited
	KindHelper
	KindHelperExited
)

func (k Kind) String() string {
	switch k {
	case KindService:
		return "service"
	case KindServiceExited:
		return "service-exited"
	case KindHelper:
		return "helper"
	case KindHelperExited:
		return "helper-exited"
	default:
		return "unknown"
	}
}

// Entry is one PID table row. Only the fields relevant to Kind are
// meaningful; the others are zero. This follows the same
// tagged-struct-instead-of-Rust-enum translation used by unit.Specific.
type Entry struct {
	Kind Kind

	// Set for KindService and KindHelper.
	UnitId unit.Id

	// Set for KindService only.
	ServiceType unit.ServiceType

	// Set for KindHelper only: which command this helper process runs
	// (e.g. "ExecStartPre", "ExecStop").
	HelperName string

	// Set for KindServiceExited and KindHelperExited.
	Termination Termination
}

// NewServiceEntry builds the entry recorded when a unit's main process
// is forked.
func NewServiceEntry(id unit.Id, t unit.ServiceType) Entry {
	return Entry{Kind: KindService, UnitId: id, ServiceType: t}
}

// NewHelperEntry builds the entry recorded when a helper command
// (ExecStartPre, ExecStop, ...) is forked for a unit.
func NewHelperEntry(id unit.Id, helperName string) Entry {
	return Entry{Kind: KindHelper, UnitId: id, HelperName: helperName}
}

// NewServiceExitedEntry builds the entry a Service row is rewritten to
// once its process has been reaped.
func NewServiceExitedEntry(t Termination) Entry {
	return Entry{Kind: KindServiceExited, Termination: t}
}

// NewHelperExitedEntry builds the entry a Helper row is rewritten to
// once its process has been reaped.
func NewHelperExitedEntry(t Termination) Entry {
	return Entry{Kind: KindHelperExited, Termination: t}
}

// Table is the PID table: every process the supervisor has ever forked
// and not yet fully collected, keyed by PID. Safe for concurrent use.
type Table struct {
	mu      sync.Mutex
	entries map[int]Entry
}

// New returns an empty Table.
func New() *Table {
	return &Table{entries: make(map[int]Entry)}
}

// Insert records a freshly forked process. It overwrites any existing
// entry for pid (PID reuse by the kernel is the caller's problem to
// avoid, not the table's).
func (t *Table) Insert(pid int, e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[pid] = e
}

// Get returns the entry for pid, if any.
func (t *Table) Get(pid int) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[pid]
	return e, ok
}

// Remove deletes and returns the entry for pid, if any.
func (t *Table) Remove(pid int) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[pid]
	if ok {
		delete(t.entries, pid)
	}
	return e, ok
}

// MarkHelperExited rewrites pid's entry to HelperExited in place,
// leaving it in the table for the goroutine waiting on this helper to
// collect via Remove. It reports false if pid has no Helper entry.
func (t *Table) MarkHelperExited(pid int, term Termination) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[pid]
	if !ok || e.Kind != KindHelper {
		return false
	}
	t.entries[pid] = NewHelperExitedEntry(term)
	return true
}

// TakeServiceExit removes pid's Service entry, replaces it with a
// ServiceExited entry recording term, and returns the unit id the
// process belonged to. This mirrors service_exit_handler's two-step
// remove-then-reinsert: the exit handler needs the owning unit id to
// decide whether to restart it, while the ServiceExited row stays
// behind for any other reader racing on the same pid.
func (t *Table) TakeServiceExit(pid int, term Termination) (unit.Id, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[pid]
	if !ok || e.Kind != KindService {
		return unit.Id{}, false
	}
	id := e.UnitId
	t.entries[pid] = NewServiceExitedEntry(term)
	return id, true
}

// Len returns the number of tracked PIDs.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Pids returns every tracked PID, sorted.
func (t *Table) Pids() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]int, 0, len(t.entries))
	for pid := range t.entries {
		out = append(out, pid)
	}
	sort.Ints(out)
	return out
}
