// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// BecomeSubreaper sets or clears PR_SET_CHILD_SUBREAPER for the
// calling process, so orphaned grandchildren (a service's own forked
// helpers, once the service itself dies) get reparented here instead
// of to pid 1, letting the reaper still collect their exit status.
// Grounded on original_source/src/platform/subreaper.rs's Linux arm.
func BecomeSubreaper(set bool) error {
	var arg uintptr
	if set {
		arg = 1
	}
	if err := unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, arg, 0, 0, 0); err != nil {
		return fmt.Errorf("platform: prctl(PR_SET_CHILD_SUBREAPER, %d): %w", arg, err)
	}
	return nil
}
