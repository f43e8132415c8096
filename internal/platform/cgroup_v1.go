// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// cgroupV1 drives a freezer-hierarchy cgroup (cgroup.procs,
// freezer.state with FROZEN/THAWED strings), grounded on
// original_source/src/platform/cgroups/cgroup1.rs.
type cgroupV1 struct {
	path string
}

func (c *cgroupV1) Path() string { return c.path }

func (c *cgroupV1) Create() error {
	if err := os.MkdirAll(c.path, 0755); err != nil {
		return fmt.Errorf("platform: create cgroup %s: %w", c.path, err)
	}
	return nil
}

func (c *cgroupV1) AddSelf() error { return c.AddPid(os.Getpid()) }

func (c *cgroupV1) AddPid(pid int) error {
	return writeFile(filepath.Join(c.path, "cgroup.procs"), strconv.Itoa(pid))
}

func (c *cgroupV1) Freeze() error {
	return writeFile(filepath.Join(c.path, "freezer.state"), "FROZEN")
}

func (c *cgroupV1) Thaw() error {
	return writeFile(filepath.Join(c.path, "freezer.state"), "THAWED")
}

func (c *cgroupV1) Remove() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("platform: remove cgroup %s: %w", c.path, err)
	}
	return nil
}

func (c *cgroupV1) Procs() ([]int, error) { return readProcs(c.path) }
