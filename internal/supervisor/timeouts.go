// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import "time"

// Default timeouts applied when a service's unit file leaves the
// corresponding Timeouts field unset (spec.md §3's exec_config/timeouts
// table names no default; 90s matches the systemd-compatible default
// the original implementation inherited).
const (
	defaultStartTimeout = 90 * time.Second
	defaultStopTimeout  = 90 * time.Second
)

// OneShot readiness poll backoff (spec.md §4.3: "poll the PidTable with
// exponential backoff, 50 µs → capped at 10 ms").
const (
	oneShotPollStart = 50 * time.Microsecond
	oneShotPollCap   = 10 * time.Millisecond
)
