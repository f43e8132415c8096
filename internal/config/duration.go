// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseTimeout implements spec.md §6's timeout grammar: "infinity",
// a bare integer (seconds), or a compound like "1hrs 30min 15s".
// Grounded on original_source/src/units/unit_parsing/service_unit.rs's
// parse_timeout. "infinity" and an empty string both return a nil
// duration, which unit.Timeouts treats as "fall through to the next
// tier, or else the caller's default"; "infinity" therefore does not
// disable the timeout.
func parseTimeout(s string) (*time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "infinity") {
		return nil, nil
	}

	if secs, err := strconv.ParseUint(s, 10, 64); err == nil {
		d := time.Duration(secs) * time.Second
		return &d, nil
	}

	var total time.Duration
	for _, word := range strings.Fields(s) {
		switch {
		case strings.HasSuffix(word, "hrs"):
			n, err := strconv.ParseUint(word[:len(word)-3], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("config: invalid timeout component %q: %w", word, err)
			}
			total += time.Duration(n) * time.Hour
		case strings.HasSuffix(word, "min"):
			n, err := strconv.ParseUint(word[:len(word)-3], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("config: invalid timeout component %q: %w", word, err)
			}
			total += time.Duration(n) * time.Minute
		case strings.HasSuffix(word, "s"):
			n, err := strconv.ParseUint(word[:len(word)-1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("config: invalid timeout component %q: %w", word, err)
			}
			total += time.Duration(n) * time.Second
		default:
			return nil, fmt.Errorf("config: invalid timeout %q", s)
		}
	}
	return &total, nil
}
