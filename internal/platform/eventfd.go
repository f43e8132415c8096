// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package platform encapsulates every raw syscall the engine makes:
// eventfd wakeups, privilege dropping, the subreaper flag, and cgroup
// freezer management. Grounded on original_source/src/platform/ (mod.rs
// documents the intent of keeping OS-specific code in one place so it
// can be swapped per target); golang.org/x/sys/unix plays the role nix
// and libc play there, following trellis's go.mod dependency on
// golang.org/x/sys.
package platform

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// EventFd wraps a Linux eventfd used to wake a select loop without a
// full pipe. The engine's own loops do not create one: the
// socket-activation loop wakes its pollers through a self-pipe, and
// the notification and log-capture readers poll or block directly.
type EventFd struct {
	fd int
}

// NewEventFd creates a CLOEXEC eventfd with an initial counter of 0.
func NewEventFd() (EventFd, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return EventFd{}, fmt.Errorf("platform: create eventfd: %w", err)
	}
	return EventFd{fd: fd}, nil
}

// Fd returns the raw file descriptor, for use in a select/poll set.
func (e EventFd) Fd() int { return e.fd }

// Notify increments the eventfd's counter by 1, waking anything
// blocked reading it.
func (e EventFd) Notify() error {
	buf := [8]byte{1, 0, 0, 0, 0, 0, 0, 0}
	_, err := unix.Write(e.fd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return fmt.Errorf("platform: notify eventfd %d: %w", e.fd, err)
	}
	return nil
}

// Reset drains the eventfd's counter back to 0.
func (e EventFd) Reset() error {
	var buf [8]byte
	_, err := unix.Read(e.fd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return fmt.Errorf("platform: reset eventfd %d: %w", e.fd, err)
	}
	return nil
}

// Close closes the underlying fd.
func (e EventFd) Close() error {
	return unix.Close(e.fd)
}
