// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// cgroupV2 drives a unified-hierarchy cgroup (cgroup.procs,
// cgroup.freeze with "1"/"0"), grounded on
// original_source/src/platform/cgroups/cgroup2.rs.
type cgroupV2 struct {
	path string
}

func (c *cgroupV2) Path() string { return c.path }

func (c *cgroupV2) Create() error {
	if err := os.MkdirAll(c.path, 0755); err != nil {
		return fmt.Errorf("platform: create cgroup %s: %w", c.path, err)
	}
	return nil
}

func (c *cgroupV2) AddSelf() error { return c.AddPid(os.Getpid()) }

func (c *cgroupV2) AddPid(pid int) error {
	return writeFile(filepath.Join(c.path, "cgroup.procs"), strconv.Itoa(pid))
}

func (c *cgroupV2) Freeze() error {
	return writeFile(filepath.Join(c.path, "cgroup.freeze"), "1")
}

func (c *cgroupV2) Thaw() error {
	return writeFile(filepath.Join(c.path, "cgroup.freeze"), "0")
}

func (c *cgroupV2) Remove() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("platform: remove cgroup %s: %w", c.path, err)
	}
	return nil
}

func (c *cgroupV2) Procs() ([]int, error) { return readProcs(c.path) }
