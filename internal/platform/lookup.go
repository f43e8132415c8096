// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"fmt"
	"os/user"
	"strconv"
)

// LookupUser resolves a username (or numeric uid string) to its uid,
// primary gid, and supplementary group ids. Grounded on
// original_source/src/platform/pwnam.rs's getpwnam_r, but built on
// os/user rather than hand-rolled cgo-free getpwnam_r loops: os/user
// already wraps the libc NSS lookup the way getpwnam_r does, and no
// library in the retrieved pack re-implements it, so reaching past the
// standard library here would only recreate os/user worse.
func LookupUser(name string) (uid, gid int, groups []int, err error) {
	u, err := user.Lookup(name)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("platform: lookup user %q: %w", name, err)
	}
	uid, err = strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("platform: user %q has non-numeric uid %q", name, u.Uid)
	}
	gid, err = strconv.Atoi(u.Gid)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("platform: user %q has non-numeric gid %q", name, u.Gid)
	}
	gidStrs, err := u.GroupIds()
	if err != nil {
		return 0, 0, nil, fmt.Errorf("platform: lookup groups for %q: %w", name, err)
	}
	groups = make([]int, 0, len(gidStrs))
	for _, g := range gidStrs {
		n, err := strconv.Atoi(g)
		if err != nil {
			continue
		}
		groups = append(groups, n)
	}
	return uid, gid, groups, nil
}

// LookupGroup resolves a group name (or numeric gid string) to its gid.
func LookupGroup(name string) (int, error) {
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, fmt.Errorf("platform: lookup group %q: %w", name, err)
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return 0, fmt.Errorf("platform: group %q has non-numeric gid %q", name, g.Gid)
	}
	return gid, nil
}
