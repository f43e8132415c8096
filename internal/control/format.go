// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"github.com/KillingSpark/unitd/internal/unit"
)

// FormatUnit renders a unit's status for the "status" JSON-RPC method,
// grounded on control.rs's format_service/format_socket/format_target.
// Exported so statusapi can reuse the same rendering for its read-only
// HTTP surface instead of duplicating it.
func FormatUnit(u *unit.Unit) map[string]interface{} {
	u.Common.Status.RLock()
	snap := u.Common.Status.Get()
	u.Common.Status.RUnlock()

	out := map[string]interface{}{
		"name":   u.Id.Name,
		"status": unitStatusName(snap),
	}

	switch {
	case u.Specific.Service != nil:
		formatService(u.Specific.Service, out)
	case u.Specific.Socket != nil:
		formatSocket(u.Specific.Socket, out)
	}
	return out
}

func formatService(svc *unit.ServiceSpecific, out map[string]interface{}) {
	sockets := make([]string, 0, len(svc.Config.Sockets))
	for _, id := range svc.Config.Sockets {
		sockets = append(sockets, id.Name)
	}
	out["sockets"] = sockets

	svc.State.RLock()
	defer svc.State.RUnlock()
	if !svc.State.UpSince.IsZero() {
		out["up_since"] = svc.State.UpSince
	}
	out["restart_count"] = svc.State.RestartCount
}

func formatSocket(sock *unit.SocketSpecific, out map[string]interface{}) {
	fds := make([]string, 0, len(sock.Config.Sockets))
	for _, s := range sock.Config.Sockets {
		fds = append(fds, s.Kind.String())
	}
	out["file_descriptors"] = fds

	sock.State.RLock()
	defer sock.State.RUnlock()
	out["activated"] = sock.State.Activated
}
