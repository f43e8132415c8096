// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// CgroupDriver manages one cgroup used to reliably track every process
// belonging to a service, freeze it to collect stragglers before a
// kill, and remove it once the service is gone. Grounded on
// original_source/src/platform/cgroups/mod.rs's dynamic v1/v2 decision
// and its cgroup1.rs/cgroup2.rs per-version file layout.
type CgroupDriver interface {
	// Path is the cgroup's own directory.
	Path() string
	// Create makes the cgroup directory if it does not already exist.
	Create() error
	// AddSelf moves the calling process into the cgroup.
	AddSelf() error
	// AddPid moves an arbitrary pid into the cgroup.
	AddPid(pid int) error
	// Freeze suspends every process in the cgroup.
	Freeze() error
	// Thaw resumes every process in the cgroup.
	Thaw() error
	// Remove deletes the (now-empty) cgroup directory.
	Remove() error
	// Procs lists the pids currently in the cgroup.
	Procs() ([]int, error)
}

// KillAll sends sig to every pid currently in d's cgroup. Used to
// reliably terminate a service and every descendant it forked, the
// way a bare process-group signal cannot once a child has called
// setsid/setpgid away from its parent's group.
func KillAll(d CgroupDriver, sig unix.Signal) error {
	pids, err := d.Procs()
	if err != nil {
		return err
	}
	var firstErr error
	for _, pid := range pids {
		if err := unix.Kill(pid, sig); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("platform: kill %d in cgroup %s: %w", pid, d.Path(), err)
		}
	}
	return firstErr
}

func readProcs(path string) ([]int, error) {
	data, err := os.ReadFile(filepath.Join(path, "cgroup.procs"))
	if err != nil {
		return nil, fmt.Errorf("platform: read %s/cgroup.procs: %w", path, err)
	}
	var pids []int
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// NewCgroupDriver picks the v1 (freezer) or v2 (unified) driver
// depending on whether basePath/cgroup.freeze (the v2 tell documented
// in cgroups/mod.rs's use_v2) exists, and returns a driver rooted at
// basePath/name.
func NewCgroupDriver(basePath, name string) (CgroupDriver, error) {
	path := filepath.Join(basePath, name)
	if useCgroupV2(basePath) {
		return &cgroupV2{path: path}, nil
	}
	return &cgroupV1{path: path}, nil
}

func useCgroupV2(basePath string) bool {
	_, err := os.Stat(filepath.Join(basePath, "cgroup.freeze"))
	return err == nil
}

func writeFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("platform: open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("platform: write %s: %w", path, err)
	}
	return nil
}
