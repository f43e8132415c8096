// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logging centralizes the daemon's log destination, matching
// the ambient style of trellis's cmd/trellis and every internal
// package: plain log.Printf against the standard library's log
// package, no structured logging library. Nothing in the teacher or
// the rest of the example pack pulls in a logging library (logrus,
// zap, zerolog), so this stays on the standard library rather than
// introducing a dependency the corpus itself never reaches for.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// Setup directs the standard logger at a file under dir (spec.md §6's
// logging.dir config key), creating dir if needed. An empty dir keeps
// logging on the process's existing stderr. The returned io.Closer
// must be closed on shutdown; callers that passed an empty dir get a
// no-op closer.
func Setup(dir string) (io.Closer, error) {
	if dir == "" {
		return nopCloser{}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: create dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, "unitd.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open %s: %w", path, err)
	}

	log.SetOutput(f)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
