// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const (
	maxDatagram    = 4096
	maxAncillaryFD = 16
)

// Listener is one service's notification socket: an AF_UNIX datagram
// socket bound to a filesystem path, CLOEXEC so it isn't inherited
// across execs other than the service's own (spec.md §4.3 step 1).
type Listener struct {
	fd   int
	path string
}

// NewListener creates and binds the notification socket at path,
// removing any stale socket file left behind by a previous run.
func NewListener(path string) (*Listener, error) {
	_ = os.Remove(path)

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("notify: create socket: %w", err)
	}
	addr := &unix.SockaddrUnix{Name: path}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("notify: bind %s: %w", path, err)
	}
	return &Listener{fd: fd, path: path}, nil
}

// Fd returns the raw socket fd, for use in a select/poll set alongside
// the engine's eventfds.
func (l *Listener) Fd() int { return l.fd }

// Path returns the filesystem path this socket is bound to.
func (l *Listener) Path() string { return l.path }

// Recv reads one datagram and parses it, harvesting any SCM_RIGHTS
// ancillary file descriptors into the returned Message's Fds.
// Returns unix.EAGAIN if the socket is non-blocking and no datagram is
// pending; callers drive this from a select/poll loop.
func (l *Listener) Recv() (Message, error) {
	buf := make([]byte, maxDatagram)
	oob := make([]byte, unix.CmsgSpace(maxAncillaryFD*4))

	n, oobn, _, _, err := unix.Recvmsg(l.fd, buf, oob, 0)
	if err != nil {
		return Message{}, err
	}

	msg := ParseMessage(buf[:n])
	if oobn > 0 {
		fds, err := parseAncillaryFds(oob[:oobn])
		if err != nil {
			return Message{}, fmt.Errorf("notify: parse ancillary data: %w", err)
		}
		msg.Fds = fds
	}
	return msg, nil
}

func parseAncillaryFds(oob []byte) ([]int, error) {
	cmsgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, err
	}
	var fds []int
	for _, c := range cmsgs {
		got, err := unix.ParseUnixRights(&c)
		if err != nil {
			continue
		}
		fds = append(fds, got...)
	}
	return fds, nil
}

// Close closes the socket and removes the backing file.
func (l *Listener) Close() error {
	err := unix.Close(l.fd)
	_ = os.Remove(l.path)
	if err != nil {
		return fmt.Errorf("notify: close %s: %w", l.path, err)
	}
	return nil
}
