// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// DropPrivileges sets the real/effective/saved group and user ids to
// gid/uid, applying supplementary groups after the group id and before
// the user id. Grounded on
// original_source/src/platform/drop_privileges.rs: group id before
// user id, and supplementary groups are skipped (not failed) when the
// kernel's /proc/self/setgroups says they cannot be dropped, matching
// what the comment there says systemd does too.
func DropPrivileges(uid, gid int, supplementaryGids []int) error {
	if err := unix.Setresgid(gid, gid, gid); err != nil {
		return fmt.Errorf("platform: setresgid(%d): %w", gid, err)
	}
	if err := maybeSetGroups(supplementaryGids); err != nil {
		return err
	}
	if err := unix.Setresuid(uid, uid, uid); err != nil {
		return fmt.Errorf("platform: setresuid(%d): %w", uid, err)
	}
	return nil
}

func maybeSetGroups(gids []int) error {
	can, err := canDropGroups()
	if err != nil {
		return err
	}
	if !can {
		// The kernel has locked /proc/self/setgroups; leave the
		// inherited supplementary groups alone rather than fail the
		// whole start sequence.
		return nil
	}
	if err := unix.Setgroups(gids); err != nil {
		return fmt.Errorf("platform: setgroups: %w", err)
	}
	return nil
}

func canDropGroups() (bool, error) {
	const path = "/proc/self/setgroups"
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("platform: read %s: %w", path, err)
	}
	return len(buf) >= 5 && string(buf[:5]) == "allow", nil
}
