// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package notify implements the sd_notify-style AF_UNIX datagram
// protocol services use to report readiness, status text, and stored
// file descriptors back to the engine (spec.md §4.3 "Notify"). Loosely
// grounded on original_source/src/notification_handler.rs's
// KEY=VALUE line parsing, generalized from its stream-socket reader to
// the spec's datagram-with-SCM_RIGHTS protocol.
package notify

import "strings"

// Message is one parsed notification datagram. A single datagram may
// set any combination of these fields; Recognized keys not present in
// the datagram keep their zero value.
type Message struct {
	Ready    bool
	Status   string
	HasStatus bool
	FDStore  bool
	FDName   string
	Fds      []int
}

// ParseMessage parses the newline-terminated KEY=VALUE body of a
// notification datagram (spec.md §4.5). Unrecognized keys are ignored,
// matching original_source's "TODO process notification content"
// catch-all.
func ParseMessage(body []byte) Message {
	var m Message
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "READY":
			m.Ready = value == "1"
		case "STATUS":
			m.Status = value
			m.HasStatus = true
		case "FDSTORE":
			m.FDStore = value == "1"
		case "FDNAME":
			m.FDName = value
		}
	}
	return m
}
