// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/KillingSpark/unitd/internal/unit"
)

// findUnitPath searches dirs recursively for a file named exactly
// name, returning the first match. Grounded on
// original_source/src/units/insert_new.rs's find_new_unit_path.
func findUnitPath(dirs []string, name string) (string, error) {
	for _, dir := range dirs {
		path, err := findUnitPathIn(dir, name)
		if err != nil {
			return "", err
		}
		if path != "" {
			return path, nil
		}
	}
	return "", nil
}

func findUnitPathIn(dir, name string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("config: read dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			path, err := findUnitPathIn(filepath.Join(dir, e.Name()), name)
			if err != nil {
				return "", err
			}
			if path != "" {
				return path, nil
			}
			continue
		}
		if e.Name() == name {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", nil
}

// LoadNamedUnit locates and parses a single unit file by its exact
// file name (e.g. "web.service") anywhere under dirs. Grounded on
// original_source/src/units/insert_new.rs's load_new_unit.
func LoadNamedUnit(dirs []string, name string) (*unit.Unit, error) {
	path, err := findUnitPath(dirs, name)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("config: cannot find unit file for unit: %s", name)
	}
	return LoadUnitFile(path)
}
