// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"fmt"

	ps "github.com/mitchellh/go-ps"
	"golang.org/x/sys/unix"
)

// KillProcessGroup sends sig to every process in the group led by
// pgid, the approach original_source's kill_service.rs takes by
// signalling the negated pid. Go's SysProcAttr{Setpgid:true} makes the
// service's own pid the group leader, so pgid is normally that pid.
func KillProcessGroup(pgid int, sig unix.Signal) error {
	if err := unix.Kill(-pgid, sig); err != nil && err != unix.ESRCH {
		return fmt.Errorf("platform: kill process group %d: %w", pgid, err)
	}
	return nil
}

// StrayProcesses returns the pid of every live process whose process
// group id is pgid, e.g. to check whether a group is actually empty
// after SIGKILL, whose delivery isn't synchronous. The supervisor's
// stop sequence and the exit handler do not call it.
func StrayProcesses(pgid int) ([]int, error) {
	procs, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("platform: list processes: %w", err)
	}
	var stray []int
	for _, p := range procs {
		g, err := unix.Getpgid(p.Pid())
		if err != nil {
			continue
		}
		if g == pgid {
			stray = append(stray, p.Pid())
		}
	}
	return stray, nil
}
