// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package activation

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/KillingSpark/unitd/internal/unit"
)

// listenBacklog is the backlog passed to listen(2) for stream and
// seqpacket sockets.
const listenBacklog = 128

// openSingleSocket opens and, for connection-oriented kinds, starts
// listening on one configured socket address. The returned fd has
// FD_CLOEXEC unset, matching what ExtraFiles-based fd passing and the
// socket-activation select loop both need. Grounded on the raw
// golang.org/x/sys/unix style package notify already uses for its
// AF_UNIX datagram socket, generalized across every address family
// and socket kind spec.md's unit files can express.
func openSingleSocket(cfg unit.SingleSocketConfig) (int, error) {
	switch cfg.Addr.Family {
	case unit.AddrUnix:
		return openUnixSocket(cfg)
	case unit.AddrIPv4TCP:
		return openInetSocket(unix.AF_INET, unix.SOCK_STREAM, cfg.Addr, true)
	case unit.AddrIPv6TCP:
		return openInetSocket(unix.AF_INET6, unix.SOCK_STREAM, cfg.Addr, true)
	case unit.AddrIPv4UDP:
		return openInetSocket(unix.AF_INET, unix.SOCK_DGRAM, cfg.Addr, false)
	case unit.AddrIPv6UDP:
		return openInetSocket(unix.AF_INET6, unix.SOCK_DGRAM, cfg.Addr, false)
	case unit.AddrFifoPath:
		return openFifo(cfg.Addr.Path)
	default:
		return -1, fmt.Errorf("activation: unknown address family %v", cfg.Addr.Family)
	}
}

func unixSockType(kind unit.SocketKind) (int, error) {
	switch kind {
	case unit.SocketStream:
		return unix.SOCK_STREAM, nil
	case unit.SocketDatagram:
		return unix.SOCK_DGRAM, nil
	case unit.SocketSeqPacket:
		return unix.SOCK_SEQPACKET, nil
	default:
		return 0, fmt.Errorf("activation: socket kind %v invalid for AF_UNIX", kind)
	}
}

func openUnixSocket(cfg unit.SingleSocketConfig) (int, error) {
	typ, err := unixSockType(cfg.Kind)
	if err != nil {
		return -1, err
	}

	_ = os.Remove(cfg.Addr.Path)

	fd, err := unix.Socket(unix.AF_UNIX, typ, 0)
	if err != nil {
		return -1, fmt.Errorf("socket(AF_UNIX): %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: cfg.Addr.Path}); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("bind %s: %w", cfg.Addr.Path, err)
	}
	if typ == unix.SOCK_STREAM || typ == unix.SOCK_SEQPACKET {
		if err := unix.Listen(fd, listenBacklog); err != nil {
			_ = unix.Close(fd)
			return -1, fmt.Errorf("listen %s: %w", cfg.Addr.Path, err)
		}
	}
	return fd, nil
}

func openInetSocket(domain, typ int, addr unit.SpecializedAddr, listening bool) (int, error) {
	fd, err := unix.Socket(domain, typ, 0)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}

	if err := bindInet(fd, domain, addr); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}

	if listening {
		if err := unix.Listen(fd, listenBacklog); err != nil {
			_ = unix.Close(fd)
			return -1, fmt.Errorf("listen %s:%d: %w", addr.Host, addr.Port, err)
		}
	}
	return fd, nil
}

func bindInet(fd, domain int, addr unit.SpecializedAddr) error {
	if domain == unix.AF_INET {
		var ip [4]byte
		if addr.Host != "" && addr.Host != "0.0.0.0" {
			parsed := net.ParseIP(addr.Host)
			if parsed == nil {
				return fmt.Errorf("bind: invalid IPv4 address %q", addr.Host)
			}
			v4 := parsed.To4()
			if v4 == nil {
				return fmt.Errorf("bind: %q is not an IPv4 address", addr.Host)
			}
			copy(ip[:], v4)
		}
		return unix.Bind(fd, &unix.SockaddrInet4{Port: addr.Port, Addr: ip})
	}
	var ip [16]byte
	if addr.Host != "" && addr.Host != "::" {
		parsed := net.ParseIP(addr.Host)
		if parsed == nil {
			return fmt.Errorf("bind: invalid IPv6 address %q", addr.Host)
		}
		copy(ip[:], parsed.To16())
	}
	return unix.Bind(fd, &unix.SockaddrInet6{Port: addr.Port, Addr: ip})
}

// openFifo creates (if missing) and opens a FIFO for reading and
// writing. Opening O_RDWR avoids the open(2) call blocking on a reader
// for a FIFO nothing has connected to yet, the same trick systemd uses
// for its FIFO-backed sockets.
func openFifo(path string) (int, error) {
	if err := unix.Mkfifo(path, 0o600); err != nil && err != unix.EEXIST {
		return -1, fmt.Errorf("mkfifo %s: %w", path, err)
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return -1, fmt.Errorf("open %s: %w", path, err)
	}
	return fd, nil
}
